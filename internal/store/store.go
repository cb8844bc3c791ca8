// Package store is the persistence port for the bot: a durable mapping from a
// string key to a JSON document. Every backend replaces the whole document on
// write and returns an empty object for keys that were never written.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys used by the bot.
const (
	KeyPinCounts     = "pin_counts"
	KeyPinterestAuth = "pinterest_tokens"
	KeyBoards        = "boards"
	KeyModelSettings = "model_settings"
	KeyOAuthStates   = "oauth_states"
	KeyRestartInfo   = "restart_info"
)

// EmptyObject is what Read returns for an absent key.
var EmptyObject = json.RawMessage(`{}`)

// ErrInvalidJSON is wrapped by Write when the value does not parse.
var ErrInvalidJSON = errors.New("value is not valid JSON")

// Store reads and writes whole JSON documents by key.
type Store interface {
	Read(ctx context.Context, key string) (json.RawMessage, error)
	Write(ctx context.Context, key string, value json.RawMessage) error
	Close() error
}

// Error is a storage failure. Callers of the rate limiter treat it as
// an indeterminate quota decision.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err came from a Store.
func IsStorageError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// ReadJSON loads key and decodes it into v.
func ReadJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Read(ctx, key)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		raw = EmptyObject
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &Error{Op: "decode", Key: key, Err: err}
	}
	return nil
}

// WriteJSON encodes v and stores it under key.
func WriteJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &Error{Op: "encode", Key: key, Err: err}
	}
	return s.Write(ctx, key, raw)
}
