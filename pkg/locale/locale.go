// Package locale negocia el idioma del portal contra la lista de idiomas
// soportados. Los catálogos de mensajes los sirve el front; aquí solo se
// decide la etiqueta BCP 47 efectiva.
package locale

import (
	"golang.org/x/text/language"
)

// supported idiomas con catálogo en el front. El primero es el fallback final.
var supported = []language.Tag{
	language.Spanish,
	language.English,
	language.BrazilianPortuguese,
}

var matcher = language.NewMatcher(supported)

// Negotiate resuelve el idioma efectivo a partir del header Accept-Language.
// Devuelve siempre la etiqueta canónica de la lista soportada ("pt-BR", nunca
// un "pt" recortado). Un header vacío o no parseable cae en defaultLocale.
func Negotiate(acceptLanguage, defaultLocale string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return normalize(defaultLocale)
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return normalize(defaultLocale)
	}
	return supported[idx].String()
}

// Supported informa si la etiqueta corresponde a un idioma soportado.
func Supported(tag string) bool {
	parsed, err := language.Parse(tag)
	if err != nil {
		return false
	}
	_, _, conf := matcher.Match(parsed)
	return conf >= language.High
}

// normalize resuelve la etiqueta contra la lista soportada ("es-CO" -> "es",
// "pt" -> "pt-BR"). Si no parsea o no matchea, devuelve el fallback final.
func normalize(tag string) string {
	parsed, err := language.Parse(tag)
	if err != nil {
		return supported[0].String()
	}
	_, idx, conf := matcher.Match(parsed)
	if conf == language.No {
		return supported[0].String()
	}
	return supported[idx].String()
}
