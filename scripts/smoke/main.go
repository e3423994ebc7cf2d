package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Role     string `json:"role"`
	Expect   int    `json:"expect"`
	Critical bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type result struct {
	Target   target
	Status   int
	Code     string
	Error    error
	Duration time.Duration
}

// defaultTargets probe the access rules of a freshly seeded deployment.
var defaultTargets = []target{
	{Method: http.MethodGet, Path: "/health", Expect: http.StatusOK, Critical: true},
	{Method: http.MethodGet, Path: "/ready", Expect: http.StatusOK, Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/courses", Expect: http.StatusOK, Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/auth/me", Expect: http.StatusUnauthorized, Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/auth/me", Role: "student", Expect: http.StatusOK, Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/payments/pending", Role: "student", Expect: http.StatusForbidden, Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/payments/pending", Role: "admin", Expect: http.StatusOK, Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/enrollments", Role: "teacher", Expect: http.StatusOK},
	{Method: http.MethodGet, Path: "/api/v1/admin/stats", Role: "admin", Expect: http.StatusOK},
	{Method: http.MethodGet, Path: "/api/v1/admin/teacher-stats", Role: "teacher", Expect: http.StatusOK},
	{Method: http.MethodGet, Path: "/metrics", Expect: http.StatusOK},
}

func main() {
	var (
		base        string
		targetsPath string
		tokens      string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "LMS API base URL")
	flag.StringVar(&targetsPath, "targets", "", "Optional JSON targets file")
	flag.StringVar(&tokens, "tokens", "", "Comma separated role=token pairs, e.g. admin=eyJ...,student=eyJ...")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets := defaultTargets
	if targetsPath != "" {
		loaded, err := loadTargets(targetsPath)
		if err != nil {
			log.Fatalf("failed to load targets: %v", err)
		}
		targets = loaded
	}
	roleTokens := parseTokens(tokens)

	client := &http.Client{Timeout: timeout}
	var (
		results  []result
		breaking int
		optional int
		skipped  int
	)

	for _, t := range targets {
		token := ""
		if t.Role != "" {
			token = roleTokens[t.Role]
			if token == "" {
				skipped++
				continue
			}
		}
		res := probe(client, base, token, t)
		if res.Error != nil || res.Status != t.Expect {
			if t.Critical {
				breaking++
			} else {
				optional++
			}
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Breaking: %d, Optional: %d, Skipped (no token): %d\n", breaking, optional, skipped)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func parseTokens(raw string) map[string]string {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		role, token, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || role == "" || token == "" {
			continue
		}
		tokens[strings.ToLower(role)] = token
	}
	return tokens
}

func probe(client *http.Client, base, token string, tgt target) result {
	res := result{Target: tgt}
	if client == nil {
		res.Error = errors.New("nil client")
		return res
	}
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		res.Error = err
		return res
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Error = fmt.Errorf("read body: %w", err)
		return res
	}
	res.Code = errorCode(body)
	return res
}

// errorCode extracts error.code from a response envelope, if any.
func errorCode(body []byte) string {
	var envelope struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		return ""
	}
	return envelope.Error.Code
}

func printReport(results []result) {
	fmt.Println("Smoke Report")
	fmt.Println("============")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if res.Status != res.Target.Expect {
			status = "DIFF"
		}
		role := res.Target.Role
		if role == "" {
			role = "anonymous"
		}
		fmt.Printf("[%s] %s %s as %s\n", status, res.Target.Method, res.Target.Path, role)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Status: %d (expected %d, %s) | Critical: %t\n", res.Status, res.Target.Expect, res.Duration, res.Target.Critical)
		if res.Code != "" {
			fmt.Printf("  Error code: %s\n", res.Code)
		}
	}
}
