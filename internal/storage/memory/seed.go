package memory

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/lobby/internal/lobby/store"
)

// SeedPlayer is one entry in a players seed file. Exactly one of Password and
// PasswordHash is set.
type SeedPlayer struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
	Nickname     string `yaml:"nickname"`
	Score        int32  `yaml:"score"`
}

// SeedFile is the top-level layout of a players seed file.
type SeedFile struct {
	Players []SeedPlayer `yaml:"players"`
}

// LoadSeedFile reads a YAML seed file from path into s.
//
// Postcondition: Returns the number of players added, or an error naming the
// first bad entry. Entries before the bad one remain stored.
func LoadSeedFile(s *PlayerStore, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading seed file: %w", err)
	}
	return LoadSeed(s, data)
}

// LoadSeed parses YAML seed data into s.
func LoadSeed(s *PlayerStore, data []byte) (int, error) {
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parsing seed file: %w", err)
	}

	for i, sp := range file.Players {
		if sp.Username == "" {
			return i, fmt.Errorf("seed player %d: username must not be empty", i)
		}
		hash := sp.PasswordHash
		switch {
		case hash != "" && sp.Password != "":
			return i, fmt.Errorf("seed player %q: set password or password_hash, not both", sp.Username)
		case hash == "" && sp.Password == "":
			return i, fmt.Errorf("seed player %q: password must not be empty", sp.Username)
		case hash == "":
			h, err := store.HashPassword(sp.Password)
			if err != nil {
				return i, fmt.Errorf("seed player %q: hashing password: %w", sp.Username, err)
			}
			hash = h
		}
		_, err := s.insert(store.Player{
			Username:     sp.Username,
			PasswordHash: hash,
			Nickname:     sp.Nickname,
			Score:        sp.Score,
			CreatedAt:    s.now(),
		})
		if errors.Is(err, store.ErrUsernameTaken) {
			return i, fmt.Errorf("seed player %q: %w", sp.Username, err)
		}
		if err != nil {
			return i, err
		}
	}
	return len(file.Players), nil
}
