package entity

// AllBranches es el valor centinela de selección "todas las sedes".
// Un operador con una sola sede no tiene esa opción: se auto-selecciona la suya.
const AllBranches = "all"

// Branch representa una sede de la organización (clínica, laboratorio, etc.).
// Es una proyección de solo lectura que entrega el backend una vez por sesión.
type Branch struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Code   string `json:"code"`
	IsMain bool   `json:"is_main"`
}
