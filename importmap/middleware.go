package importmap

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roverlang/rover/bridge"
)

// Middleware injects import maps into HTML responses. It stashes the
// manager in the per-request scratch map
// so downstream handlers can reach it, then — for HTML-shaped
// responses, when dev mode or auto-injection is on — rewrites the
// body to insert the rendered import map before the closing
// `</head>` tag.
func Middleware(manager *Manager) bridge.Middleware {
	return func(next bridge.HandlerFunc) bridge.HandlerFunc {
		return func(ctx *bridge.RequestContext) (any, error) {
			ctx.Set("importMapManager", manager)

			result, err := next(ctx)
			if err != nil {
				return result, err
			}

			resp, ok := result.(*bridge.Response)
			if !ok || !strings.Contains(resp.ContentType(), "text/html") {
				return result, nil
			}

			if !manager.devMode && !shouldAutoInject(ctx) {
				return result, nil
			}

			return injectImportMaps(resp, manager), nil
		}
	}
}

// shouldAutoInject determines if import maps should be auto-injected
// for this request. API routes and HTMX partial-render requests are
// excluded, since neither renders a full document head.
func shouldAutoInject(ctx *bridge.RequestContext) bool {
	if disabled, ok := ctx.Get("disableImportMapInjection"); ok {
		if b, isBool := disabled.(bool); isBool && b {
			return false
		}
	}

	if bytes.HasPrefix(ctx.Path, []byte("/api/")) {
		return false
	}

	if headerEquals(ctx, "HX-Request", "true") {
		return false
	}

	return true
}

// injectImportMaps rewrites resp's body to insert the rendered import
// map tag and module entrypoint script immediately before `</head>`.
// If no `</head>` is found the body is returned unmodified.
func injectImportMaps(resp *bridge.Response, manager *Manager) *bridge.Response {
	body, ok := resp.Body()
	if !ok {
		return resp
	}

	idx := bytes.Index(body, []byte("</head>"))
	if idx == -1 {
		return resp
	}

	injected := manager.RenderHTML() + manager.RenderModuleEntrypoint()
	out := make([]byte, 0, len(body)+len(injected))
	out = append(out, body[:idx]...)
	out = append(out, injected...)
	out = append(out, body[idx:]...)
	return resp.WithBody(out)
}

// DevModeMiddleware toggles the manager's dev-mode flag based on a
// "rover.env" scratch value set by the host at startup, the
// Rover-native replacement for reading `buffalo.App.Env`.
func DevModeMiddleware(manager *Manager) bridge.Middleware {
	return func(next bridge.HandlerFunc) bridge.HandlerFunc {
		return func(ctx *bridge.RequestContext) (any, error) {
			if env, ok := ctx.Get("rover.env"); ok {
				if s, isStr := env.(string); isStr {
					manager.SetDevMode(s == "development")
				}
			}
			return next(ctx)
		}
	}
}

// VendorMiddleware sets caching headers on requests under
// /assets/vendor/ (long-lived and immutable outside dev mode, no-cache
// in dev mode), plus an X-Content-Integrity header when the file
// matches a vendored import with a known hash. The file itself is
// served by the next handler.
func VendorMiddleware(manager *Manager) bridge.Middleware {
	return func(next bridge.HandlerFunc) bridge.HandlerFunc {
		return func(ctx *bridge.RequestContext) (any, error) {
			path := string(ctx.Path)
			if !strings.HasPrefix(path, "/assets/vendor/") {
				return next(ctx)
			}

			filename := strings.TrimPrefix(path, "/assets/vendor/")

			for name := range manager.List() {
				if strings.Contains(filename, sanitizeName(name)) {
					if integrity := manager.GetIntegrity(name); integrity != "" {
						ctx.SetHeader("X-Content-Integrity", integrity)
					}
					break
				}
			}

			if !manager.devMode {
				ctx.SetHeader("Cache-Control", "public, max-age=31536000, immutable")
			} else {
				ctx.SetHeader("Cache-Control", "no-cache")
			}

			return next(ctx)
		}
	}
}

// PreloadMiddleware adds preload link headers for critical modules
// ahead of every response, regardless of its eventual content type.
func PreloadMiddleware(manager *Manager) bridge.Middleware {
	criticalModules := []string{"htmx.org", "alpinejs", "app"}

	return func(next bridge.HandlerFunc) bridge.HandlerFunc {
		return func(ctx *bridge.RequestContext) (any, error) {
			for _, module := range criticalModules {
				url, exists := manager.imports[module]
				if !exists {
					continue
				}

				link := fmt.Sprintf(`<%s>; rel="modulepreload"`, url)
				if integrity := manager.GetIntegrity(module); integrity != "" {
					link = fmt.Sprintf(`<%s>; rel="modulepreload"; integrity="%s"`, url, integrity)
				}
				ctx.SetHeader("Link", link)
			}

			return next(ctx)
		}
	}
}

func headerEquals(ctx *bridge.RequestContext, name, value string) bool {
	hdrs := ctx.Headers()
	tbl, ok := hdrs.Table()
	if !ok {
		return false
	}
	for _, v := range tbl.ArrayValues() {
		entry, ok := v.Table()
		if !ok {
			continue
		}
		if strings.EqualFold(entry.Field("name").String(), name) {
			return entry.Field("value").String() == value
		}
	}
	return false
}
