package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrCoreExists      = errors.New("core already registered")
	ErrCoreNil         = errors.New("core is nil")
	ErrInvalidMetadata = errors.New("invalid core metadata")
)

// Registry maps game types to cores. It is populated once at process start
// and only read afterwards.
type Registry struct {
	items map[GameType]EmulatorCore
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[GameType]EmulatorCore)}
}

// ValidateMetadata checks required metadata fields and game type format.
func ValidateMetadata(meta CoreMetadata) error {
	id := strings.TrimSpace(string(meta.GameType))
	name := strings.TrimSpace(meta.Name)
	if id == "" || name == "" {
		return fmt.Errorf("%w: game type and name are required", ErrInvalidMetadata)
	}
	if !isValidGameType(id) {
		return fmt.Errorf("%w: invalid game type %q", ErrInvalidMetadata, id)
	}
	if meta.FrameWidth == 0 || meta.FrameHeight == 0 {
		return fmt.Errorf("%w: %s frame dimensions are required", ErrInvalidMetadata, id)
	}
	return nil
}

func (r *Registry) Register(c EmulatorCore) error {
	if c == nil {
		return ErrCoreNil
	}
	meta := c.Metadata()
	if err := ValidateMetadata(meta); err != nil {
		return err
	}
	if _, ok := r.items[meta.GameType]; ok {
		return fmt.Errorf("%w: %s", ErrCoreExists, meta.GameType)
	}
	r.items[meta.GameType] = c
	return nil
}

// Lookup returns the core for gameType. A miss is a normal outcome.
func (r *Registry) Lookup(gameType GameType) (EmulatorCore, bool) {
	if r == nil {
		return nil, false
	}
	c, ok := r.items[gameType]
	return c, ok
}

// ListMetadata returns metadata ordered by game type.
func (r *Registry) ListMetadata() []CoreMetadata {
	list := make([]CoreMetadata, 0, len(r.items))
	for _, c := range r.items {
		list = append(list, c.Metadata())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].GameType < list[j].GameType
	})
	return list
}

func isValidGameType(id string) bool {
	lastSep := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(id)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
