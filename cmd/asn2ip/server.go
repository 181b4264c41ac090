package main

import (
	_ "embed"
	"html/template"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/g0dsCookie/asn2ip"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

//go:embed index.html
var indexHTML string

type serverOptions struct {
	WhoisHost string
	WhoisPort int
	Timeout   time.Duration
	DNSAddr   string
	URL       string
}

type server struct {
	opt serverOptions
	// One fetcher per (ipv4, ipv6) request combination so per-request
	// family selection doesn't rebuild the shared cache or session limiter.
	fetchers map[[2]bool]asn2ip.Fetcher
	index    *template.Template
	router   chi.Router
}

func newServer(opt serverOptions, cache *asn2ip.Cache, syslogOpt *asn2ip.SyslogOptions) *server {
	limiter := asn2ip.NewSessionLimiter(0)
	fetchers := make(map[[2]bool]asn2ip.Fetcher)
	for _, ipv4 := range []bool{false, true} {
		for _, ipv6 := range []bool{false, true} {
			var f asn2ip.Fetcher = asn2ip.NewResolver(asn2ip.ResolverOptions{
				Server:  opt.WhoisHost,
				Port:    opt.WhoisPort,
				IPv4:    ipv4,
				IPv6:    ipv6,
				Timeout: opt.Timeout,
				Cache:   cache,
				Limiter: limiter,
			})
			if syslogOpt != nil {
				f = asn2ip.NewSyslog(f, *syslogOpt)
			}
			fetchers[[2]bool{ipv4, ipv6}] = f
		}
	}

	s := &server{
		opt:      opt,
		fetchers: fetchers,
		index:    template.Must(template.New("index").Parse(indexHTML)),
	}
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleIndex)
	r.Get("/{asn}", s.handleFetch)
	s.router = r
	return s
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, map[string]string{"BaseURL": s.opt.URL}); err != nil {
		asn2ip.Log.WithError(err).Error("failed to render help page")
	}
}

type asnResponse struct {
	IPv4 []netip.Prefix `json:"ipv4"`
	IPv6 []netip.Prefix `json:"ipv6"`
	Info *asn2ip.ASInfo `json:"info,omitempty"`
}

func (s *server) handleFetch(w http.ResponseWriter, r *http.Request) {
	asns, err := asn2ip.NormalizeASNs(strings.Split(chi.URLParam(r, "asn"), ":"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.PlainText(w, r, err.Error())
		return
	}

	ipv4, err := boolParam(r, "ipv4", true)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.PlainText(w, r, "ipv4 query parameter must be a boolean")
		return
	}
	ipv6, err := boolParam(r, "ipv6", true)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.PlainText(w, r, "ipv6 query parameter must be a boolean")
		return
	}
	wantInfo, err := boolParam(r, "info", false)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.PlainText(w, r, "info query parameter must be a boolean")
		return
	}
	asJSON, err := boolParam(r, "json", false)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.PlainText(w, r, "json query parameter must be a boolean")
		return
	}
	asJSON = asJSON || strings.EqualFold(r.Header.Get("Accept"), "application/json")
	separator := r.URL.Query().Get("separator")
	if separator == "" {
		separator = " "
	}

	args := make([]string, len(asns))
	for i, asn := range asns {
		args[i] = string(asn)
	}
	result, err := s.fetchers[[2]bool{ipv4, ipv6}].Fetch(args...)
	if err != nil {
		render.Status(r, http.StatusBadGateway)
		render.PlainText(w, r, "failed to fetch networks for "+strings.Join(args, ":"))
		return
	}

	if asJSON {
		payload := make(map[string]asnResponse, len(result))
		for asn, nets := range result {
			entry := asnResponse{IPv4: nets.IPv4, IPv6: nets.IPv6}
			if wantInfo {
				info, err := asn2ip.LookupASInfo(asn2ip.ASN(asn), s.opt.DNSAddr)
				if err != nil {
					asn2ip.Log.WithError(err).WithField("asn", asn).Warn("failed to look up AS registration info")
				} else {
					entry.Info = info
				}
			}
			payload[asn] = entry
		}
		render.JSON(w, r, payload)
		return
	}

	var all []string
	for _, asn := range asns {
		nets, ok := result[string(asn)]
		if !ok {
			continue
		}
		for _, p := range nets.IPv4 {
			all = append(all, p.String())
		}
		for _, p := range nets.IPv6 {
			all = append(all, p.String())
		}
	}
	render.PlainText(w, r, strings.Join(all, separator))
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return def, nil
	}
	switch strings.ToLower(value) {
	case "y", "yes":
		return true, nil
	}
	return strconv.ParseBool(value)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		asn2ip.Log.WithFields(logrus.Fields{
			"client":  r.RemoteAddr,
			"method":  r.Method,
			"path":    r.URL.Path,
			"query":   r.URL.RawQuery,
			"status":  ww.Status(),
			"size":    ww.BytesWritten(),
			"latency": time.Since(start),
		}).Info("processed http request")
	})
}
