/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Game operations fail with one of these sentinels. None are retried
// internally; each either fully applies and publishes, or fails with no
// visible state change.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidPhase      = errors.New("action not valid in current phase")
	ErrPlayerNotAssigned = errors.New("player has no assignment this round")
	ErrInvalidRating     = errors.New("rating out of range")
	ErrAlreadyRated      = errors.New("rater already rated this answer")
	ErrUnknownAnswer     = errors.New("no answer recorded for that player")
)

// errorKind collapses sentinels into the four client-facing error kinds.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return "SessionNotFound"
	case errors.Is(err, ErrInvalidPhase):
		return "InvalidPhase"
	case errors.Is(err, ErrPlayerNotAssigned):
		return "PlayerNotAssigned"
	default:
		return "InvalidInput"
	}
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
