package transport

import "github.com/goliatone/go-payroll-link/core"

func unavailableError(source error, message string, metadata map[string]any) error {
	return core.ProviderUnavailableError(source, message, withAdapter(metadata))
}

func internalError(source error, message string) error {
	return core.InternalError(source, message)
}

func withAdapter(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for key, value := range metadata {
		out[key] = value
	}
	if _, ok := out["adapter"]; !ok {
		out["adapter"] = KindREST
	}
	return out
}
