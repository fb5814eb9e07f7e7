package session

import "time"

// Clock abstrae el tiempo para poder simular inactividad en tests.
type Clock interface {
	Now() time.Time
	// AfterFunc programa f tras d y devuelve el handle para cancelarla.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer handle de una función programada.
type Timer interface {
	// Stop cancela el disparo pendiente. Devuelve false si ya disparó o ya
	// estaba detenido.
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock reloj de producción sobre el paquete time.
func RealClock() Clock { return realClock{} }
