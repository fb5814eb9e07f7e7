package entity

// Roles válidos para User. Son los valores que emite el servicio de identidad;
// el portal nunca los inventa ni los traduce.
const (
	RoleAdmin        = "admin"
	RoleDoctor       = "doctor"
	RoleNurse        = "nurse"
	RolePatient      = "patient"
	RoleFinance      = "finance"
	RoleReceptionist = "receptionist"
)

// User representa al usuario autenticado tal como lo devuelve el servicio de
// identidad. Se crea en el login o se rehidrata desde el almacén de
// credenciales; se reemplaza completo en cada login y se descarta en el logout.
type User struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Role           string `json:"role"` // admin, doctor, nurse, patient, finance, receptionist
	Phone          string `json:"phone,omitempty"`
	Department     string `json:"department,omitempty"`
}

// ValidRole informa si role es uno de los roles conocidos.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDoctor, RoleNurse, RolePatient, RoleFinance, RoleReceptionist:
		return true
	}
	return false
}
