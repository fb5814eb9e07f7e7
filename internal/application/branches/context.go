// Package branches mantiene, por sesión autenticada, las sedes de la
// organización y la selección activa. Depende del AuthContext: reacciona a
// sus snapshots y se vacía cuando la sesión desaparece.
package branches

import (
	"context"
	"sync"

	"github.com/medisuite/portal-api/internal/application/ports"
	"github.com/medisuite/portal-api/internal/application/session"
	"github.com/medisuite/portal-api/internal/domain"
	"github.com/medisuite/portal-api/internal/domain/entity"
	"github.com/medisuite/portal-api/pkg/logger"
)

// Context estado de sedes de una sesión. La lista se obtiene una vez por
// identidad autenticada; un fallo del backend (o una organización sin sedes)
// resuelve a lista vacía, nunca a error fatal.
type Context struct {
	client ports.BranchService
	log    *logger.Logger

	mu       sync.Mutex
	branches []entity.Branch
	selected string
	// fetchedFor identidad (user ID) cuya carga está vigente o en vuelo.
	fetchedFor string
	gen        int
	cancel     context.CancelFunc

	unsubscribe func()
	// done permite a los tests esperar a que termine una carga en vuelo.
	done chan struct{}
}

// New construye el contexto de sedes, vacío y con el centinela "todas".
func New(client ports.BranchService, log *logger.Logger) *Context {
	return &Context{
		client:   client,
		log:      log.Component("branches"),
		selected: entity.AllBranches,
	}
}

// Bind suscribe el contexto al AuthContext. A partir de aquí las cargas y
// reinicios ocurren solos al ritmo de los snapshots de sesión.
func (c *Context) Bind(auth *session.AuthContext) {
	c.unsubscribe = auth.Subscribe(c.onSnapshot)
	// Si la sesión ya estaba establecida al momento de enlazar, no se espera
	// al siguiente cambio.
	c.onSnapshot(auth.Snapshot())
}

// Close anula la suscripción y abandona cualquier carga en vuelo.
func (c *Context) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.mu.Lock()
	c.abandonLocked()
	c.mu.Unlock()
}

func (c *Context) onSnapshot(snap session.Snapshot) {
	if snap.Loading {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !snap.Authenticated() {
		// Sin sesión la lista de sedes no significa nada; además no debe
		// filtrarse a un login posterior de otra identidad.
		c.abandonLocked()
		c.branches = nil
		c.selected = entity.AllBranches
		c.fetchedFor = ""
		return
	}

	if c.fetchedFor == snap.User.ID {
		return // ya cargado (o en vuelo) para esta identidad
	}

	// Identidad nueva: se abandona la carga anterior y arranca una fresca.
	c.abandonLocked()
	c.fetchedFor = snap.User.ID
	c.gen++
	gen := c.gen

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done

	go c.fetch(ctx, snap.Token, gen, done)
}

// fetch carga las sedes. El resultado solo se aplica si la generación sigue
// vigente: una respuesta tardía de una identidad anterior se descarta.
func (c *Context) fetch(ctx context.Context, token string, gen int, done chan struct{}) {
	defer close(done)

	list, err := c.client.Branches(ctx, token)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return // respuesta obsoleta
	}

	if err != nil {
		// Organización sin sedes o backend caído: ambas degradan a lista
		// vacía, es una configuración soportada.
		c.log.Warn().Err(err).Msg("no se pudieron cargar las sedes, se continúa sin ellas")
		c.branches = nil
		c.selected = entity.AllBranches
		return
	}

	c.branches = list
	if len(list) == 1 {
		// Un operador de una sola sede no tiene elección "todas".
		c.selected = list[0].ID
	} else {
		c.selected = entity.AllBranches
	}
}

// abandonLocked cancela la carga en vuelo e invalida su generación.
func (c *Context) abandonLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Branches copia de la lista actual (posiblemente vacía).
func (c *Context) Branches() []entity.Branch {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entity.Branch, len(c.branches))
	copy(out, c.branches)
	return out
}

// Selected sede activa, o el centinela entity.AllBranches.
func (c *Context) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// HasBranches informa si la organización tiene sedes cargadas.
func (c *Context) HasBranches() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.branches) > 0
}

// Select cambia la sede activa. Acepta el centinela o una sede de la lista;
// cualquier otro valor devuelve domain.ErrUnknownBranch.
func (c *Context) Select(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == entity.AllBranches {
		c.selected = entity.AllBranches
		return nil
	}
	for _, b := range c.branches {
		if b.ID == id {
			c.selected = id
			return nil
		}
	}
	return domain.ErrUnknownBranch
}

// Wait bloquea hasta que la carga en vuelo (si la hay) termine. Pensado para
// tests y para handlers que prefieren responder con la lista ya resuelta.
func (c *Context) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}
