package server

import "net/http"

// Stage looks at a request before routing. It either writes a complete
// response and reports handled, or leaves the response untouched and lets
// the next stage run.
type Stage func(w http.ResponseWriter, r *http.Request) (handled bool)

// Sequence runs stages in order and hands the request to final when none
// of them handled it.
func Sequence(final http.Handler, stages ...Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, stage := range stages {
			if stage(w, r) {
				return
			}
		}
		final.ServeHTTP(w, r)
	}
}
