package throttle

import (
	"net"
	"net/http"
	"strings"

	"merchant-update-gate/middleware/throttle/domain"
)

// MerchantFunc extrai o merchant da requisição. "" significa que a
// requisição não é sobre um merchant (e não é limitada).
type MerchantFunc func(r *http.Request) domain.MerchantID

// MerchantFromPath lê o primeiro segmento depois de prefix:
// "/merchants/m_1/profile" -> "m_1" para prefix "/merchants".
func MerchantFromPath(prefix string) MerchantFunc {
	prefix = "/" + strings.Trim(prefix, "/") + "/"
	return func(r *http.Request) domain.MerchantID {
		p := r.URL.Path
		if !strings.HasPrefix(p, prefix) {
			return ""
		}
		rest := strings.TrimPrefix(p, prefix)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		return domain.MerchantID(strings.TrimSpace(rest))
	}
}

// MerchantFromPathValue usa o wildcard de um padrão do ServeMux
// (ex: "GET /merchants/{id}/update-status").
func MerchantFromPathValue(name string) MerchantFunc {
	return func(r *http.Request) domain.MerchantID {
		return domain.MerchantID(strings.TrimSpace(r.PathValue(name)))
	}
}

func MerchantFromHeader(name string) MerchantFunc {
	return func(r *http.Request) domain.MerchantID {
		return domain.MerchantID(strings.TrimSpace(r.Header.Get(name)))
	}
}

// ChainMerchantFuncs devolve o primeiro merchant não vazio.
func ChainMerchantFuncs(fns ...MerchantFunc) MerchantFunc {
	return func(r *http.Request) domain.MerchantID {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if id := fn(r); id != "" {
				return id
			}
		}
		return ""
	}
}

type ClientKeyFunc func(r *http.Request) string

func DefaultClientKeyFunc(keyHeader string, trustXFF bool) ClientKeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}
