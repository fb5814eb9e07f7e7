// Package permission centraliza la evaluación de permisos del portal.
// Los permisos son strings opacos ("patients.view") que emite el backend;
// aquí solo se compara pertenencia, nunca se interpreta su contenido.
package permission

// Set conjunto de permisos. Importa la pertenencia, no el orden.
type Set map[string]struct{}

// NewSet construye un Set a partir de una lista de permisos.
// Ignora entradas vacías y duplicados.
func NewSet(perms ...string) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		if p == "" {
			continue
		}
		s[p] = struct{}{}
	}
	return s
}

// Has informa si el permiso pertenece al conjunto. Seguro sobre Set nil.
func (s Set) Has(perm string) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[perm]
	return ok
}

// List devuelve los permisos como slice (orden no garantizado).
func (s Set) List() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}

// HasAny semántica ANY: true si la intersección held ∩ required no es vacía.
// Un required vacío siempre se satisface (la ruta no impone restricción).
// No muta ninguno de los dos argumentos y es seguro sobre nil.
func HasAny(held Set, required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, p := range required {
		if held.Has(p) {
			return true
		}
	}
	return false
}

// HasAll semántica ALL: true si held contiene todos los required.
// Un required vacío siempre se satisface.
func HasAll(held Set, required []string) bool {
	for _, p := range required {
		if !held.Has(p) {
			return false
		}
	}
	return true
}
