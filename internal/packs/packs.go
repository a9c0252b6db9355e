// Package packs loads the word-pack catalogue served to clients.
// Packs are read from YAML files at startup and held in memory; the
// registry can be reloaded without restarting the server.
package packs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"github.com/waymark-protocol/waymark/internal/models"
)

// Registry holds the visible packs in display order.
type Registry struct {
	log zerolog.Logger
	dir string

	mu    sync.RWMutex
	packs []*models.Pack
}

// NewRegistry loads every pack under dir. Files that fail to parse are
// logged and skipped so one bad pack cannot take down the catalogue.
func NewRegistry(log zerolog.Logger, dir string) (*Registry, error) {
	r := &Registry{
		log: log.With().Str("component", "packs").Logger(),
		dir: dir,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Packs returns the current catalogue. The returned slice must not be
// modified.
func (r *Registry) Packs() []*models.Pack {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.packs
}

// Reload re-reads the pack directory and swaps the catalogue in one
// step. Readers keep the old slice until the swap.
func (r *Registry) Reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}

	var packs []*models.Pack
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(r.dir, entry.Name())
		pack, err := loadPack(path)
		if err != nil {
			r.log.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping unreadable pack")
			continue
		}
		if !pack.Visible {
			continue
		}
		packs = append(packs, pack)
	}

	sort.SliceStable(packs, func(i, j int) bool {
		return packs[i].Order < packs[j].Order
	})

	r.mu.Lock()
	r.packs = packs
	r.mu.Unlock()

	r.log.Info().Int("count", len(packs)).Msg("Loaded packs")
	return nil
}

// packFile is the on-disk shape. The id is a string here because the
// YAML decoder cannot fill a uuid.UUID directly.
type packFile struct {
	Name         string            `yaml:"name"`
	ID           string            `yaml:"id"`
	Templates    []string          `yaml:"templates"`
	Conjunctions []string          `yaml:"conjunctions"`
	Words        []models.WordList `yaml:"words"`
	Visible      *bool             `yaml:"visible"`
	Order        int               `yaml:"order"`
}

func loadPack(path string) (*models.Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file packFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(file.ID)
	if err != nil {
		return nil, fmt.Errorf("pack id: %w", err)
	}

	pack := &models.Pack{
		Name:         file.Name,
		ID:           id,
		Templates:    file.Templates,
		Conjunctions: file.Conjunctions,
		Words:        file.Words,
		Order:        file.Order,
		// packs are visible unless the file says otherwise
		Visible: file.Visible == nil || *file.Visible,
	}
	return pack, nil
}
