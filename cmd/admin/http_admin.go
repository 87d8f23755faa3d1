package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/state"
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

// controlCmd drives the scheduler: step, reset [-map_seed], start, pause.
func controlCmd(op string, args []string) {
	fs := flag.NewFlagSet(op, flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	mapSeed := fs.String("map_seed", "", "map seed for reset (empty: time-derived)")
	_ = fs.Parse(args)

	u, err := controlURL(*baseURL, op, *mapSeed)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	req, _ := http.NewRequest(http.MethodPost, u, nil)
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

func controlURL(baseURL, op, mapSeed string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	switch op {
	case "step":
		return base + "/admin/v1/step", nil
	case "reset":
		q := url.Values{}
		if mapSeed != "" {
			q.Set("map_seed", mapSeed)
		}
		if len(q) == 0 {
			return base + "/admin/v1/reset", nil
		}
		return base + "/admin/v1/reset?" + q.Encode(), nil
	case "start":
		return base + "/admin/v1/running?on=true", nil
	case "pause":
		return base + "/admin/v1/running?on=false", nil
	default:
		return "", fmt.Errorf("unknown op %q", op)
	}
}
