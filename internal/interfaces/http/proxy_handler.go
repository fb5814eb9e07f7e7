package http

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/medisuite/portal-api/internal/domain/entity"
	"github.com/medisuite/portal-api/pkg/logger"
)

// ProxyHandler reenvía las peticiones de los dashboards al backend de la
// plataforma con el bearer token de la sesión. El portal no interpreta los
// cuerpos: es un passthrough; la autorización ya ocurrió en la guarda de la
// ruta montada encima.
type ProxyHandler struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// NewProxyHandler construye el proxy hacia baseURL.
func NewProxyHandler(baseURL string, timeout time.Duration, log *logger.Logger) *ProxyHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ProxyHandler{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.Component("proxy"),
	}
}

// hopHeaders cabeceras que no se reenvían tal cual.
var hopHeaders = map[string]struct{}{
	fiber.HeaderAuthorization: {},
	fiber.HeaderCookie:        {},
	fiber.HeaderHost:          {},
	fiber.HeaderConnection:    {},
}

// Forward reenvía la petición al mismo path sin el prefijo /api/platform.
// Una petición proxificada ES actividad real del usuario: toca el timer.
func (h *ProxyHandler) Forward(c *fiber.Ctx) error {
	p := PipelineFromCtx(c)
	snap := p.Auth.Snapshot()
	p.Manager.Touch()

	path := strings.TrimPrefix(c.Path(), "/api/platform")
	target := h.baseURL + path
	if q := string(c.Request().URI().QueryString()); q != "" {
		target += "?" + q
	}

	req, err := http.NewRequestWithContext(c.Context(), c.Method(), target, bytes.NewReader(c.Body()))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(errorBody("PROXY", "no se pudo construir la petición"))
	}
	for key, values := range c.GetReqHeaders() {
		if _, skip := hopHeaders[key]; skip {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+snap.Token)
	// La sede activa viaja como header para que el backend acote la consulta.
	if selected := p.Branches.Selected(); selected != entity.AllBranches {
		req.Header.Set("X-Branch-ID", selected)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.log.Warn().Err(err).Str("path", path).Msg("backend de plataforma no disponible")
		return c.Status(fiber.StatusBadGateway).JSON(errorBody("PLATFORM_UNAVAILABLE", "el backend no está disponible"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(errorBody("PROXY", "respuesta truncada del backend"))
	}

	c.Status(resp.StatusCode)
	if ct := resp.Header.Get(fiber.HeaderContentType); ct != "" {
		c.Set(fiber.HeaderContentType, ct)
	}
	return c.Send(body)
}
