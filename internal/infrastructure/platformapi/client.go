// Package platformapi contiene los adaptadores HTTP hacia los servicios
// backend de la plataforma: el proveedor de identidad y el servicio de sedes.
// Usa net/http de la librería estándar; los contratos JSON ya están fijados
// por el backend y aquí solo se consumen.
package platformapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiError cuerpo de error que devuelven los servicios de la plataforma.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client base compartida de los adaptadores: URL raíz y cliente HTTP con timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient construye la base. timeout acota toda la llamada; los use cases
// pueden imponer además un context.WithTimeout más corto.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// doJSON ejecuta una petición JSON y decodifica la respuesta en out (si out
// no es nil). Devuelve el status y, para status de error, el cuerpo apiError
// decodificado (si se pudo).
func (c *Client) doJSON(ctx context.Context, method, path, bearer string, payload, out interface{}) (int, *apiError, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("platformapi: serializar request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("platformapi: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("platformapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("platformapi: leer respuesta: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Code != "" {
			return resp.StatusCode, &apiErr, nil
		}
		return resp.StatusCode, nil, nil
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("platformapi: respuesta inválida: %w", err)
		}
	}
	return resp.StatusCode, nil, nil
}
