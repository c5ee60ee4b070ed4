package opshttp

import (
	"net"
	"net/http"

	"github.com/keithlinneman/linnemanlabs-starter/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-starter/internal/log"
)

// requireNonPublicNetwork refuses peers outside loopback, private and
// link-local ranges. The peer is the socket address; forwarded headers are
// never consulted here.
func requireNonPublicNetwork(L log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !(ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()) {
			L.Warn(r.Context(), "ops request from public network refused",
				"client.address", host,
				"url.path", r.URL.Path,
			)
			httpmw.WriteJSON(w, http.StatusForbidden, httpmw.ErrorBody{Error: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
