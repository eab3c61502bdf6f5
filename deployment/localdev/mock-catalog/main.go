package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	redis "github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-bsm/internal/definitions"
)

// mock-catalog stands in for the definition catalog during local development. It serves a
// YAML definition file as JSON and, when a Redis address is given, forwards posted alarms
// onto the list the engine consumes.
func main() {
	var (
		addr      string
		path      string
		redisAddr string
		alarmKey  string
	)
	flag.StringVar(&addr, "addr", ":8090", "Listen address")
	flag.StringVar(&path, "definitions", "configs/business-services.yaml", "Definition file to serve")
	flag.StringVar(&redisAddr, "redis", "", "Redis address alarms are pushed to")
	flag.StringVar(&alarmKey, "alarm-key", "mirador:bsm:alarms", "Redis list alarms are pushed to")
	flag.Parse()

	logger := log.New(log.Writer(), "catalog-mock ", log.LstdFlags|log.Lmicroseconds)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/business-services", func(w http.ResponseWriter, r *http.Request) {
		if !enforceMethod(w, r, http.MethodGet) {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var doc definitions.Document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, doc)
	})

	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer client.Close()

		mux.HandleFunc("/alarms", func(w http.ResponseWriter, r *http.Request) {
			if !enforceMethod(w, r, http.MethodPost) {
				return
			}
			body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil || !json.Valid(body) {
				http.Error(w, "alarm body must be json", http.StatusBadRequest)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := client.RPush(ctx, alarmKey, body).Err(); err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		})
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: logRequests(logger, mux),
	}

	logger.Printf("listening on %s, serving %s", addr, path)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforceMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
