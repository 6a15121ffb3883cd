package registry

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Billy-Davies-2/glitch-pits/internal/models"
)

const (
	StartingStat = 5
	MaxStat      = 10
	maxNameRunes = 24
)

// LoreClasses are the cosmetic classes handed out at forge time.
var LoreClasses = []string{
	"The Overclocked",
	"The Virus",
	"The Null",
	"The Glitch",
	"The Fork",
	"The Stack",
	"The Kernel",
}

// UpgradePrices is the fixed price list for one stat point.
var UpgradePrices = map[string]int{
	"attack":  200,
	"defense": 200,
	"luck":    150,
}

var (
	ErrAlreadyForged     = errors.New("character already forged")
	ErrNotFound          = errors.New("character not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidUpgrade    = errors.New("invalid upgrade")
	ErrStatMaxed         = errors.New("stat already at maximum")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Registry holds one character per connection.
type Registry struct {
	mu              sync.RWMutex
	characters      map[string]*models.Character
	startingBalance int
	forgeCost       int
	pickClass       func(n int) int
}

// New creates a registry whose characters start with startingBalance minus forgeCost.
func New(startingBalance, forgeCost int) *Registry {
	return &Registry{
		characters:      make(map[string]*models.Character),
		startingBalance: startingBalance,
		forgeCost:       forgeCost,
		pickClass:       rand.IntN,
	}
}

// SetClassPicker replaces the random lore class picker.
func (r *Registry) SetClassPicker(pick func(n int) int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pickClass = pick
}

// Forge creates the character for a connection.
func (r *Registry) Forge(id, name, clothes, weapon string) (models.Character, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.characters[id]; ok {
		return models.Character{}, ErrAlreadyForged
	}

	c := &models.Character{
		ID:        id,
		Name:      DisplayName(id, name),
		Clothes:   orDefault(clothes, "vest"),
		Weapon:    orDefault(weapon, "sword"),
		LoreClass: LoreClasses[r.pickClass(len(LoreClasses))],
		Stats:     models.Stats{Attack: StartingStat, Defense: StartingStat, Luck: StartingStat},
		Balance:   r.startingBalance - r.forgeCost,
	}
	r.characters[id] = c
	return *c, nil
}

// DisplayName trims and caps a requested name, falling back to Player_<id prefix>.
func DisplayName(id, name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	if name != "" {
		return name
	}
	short := id
	if len(short) > 6 {
		short = short[:6]
	}
	return "Player_" + short
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// ApplyUpgrade buys one point of stat at cost, which must match the price list.
func (r *Registry) ApplyUpgrade(id, stat string, cost int) (models.Character, error) {
	price, ok := UpgradePrices[stat]
	if !ok {
		return models.Character{}, fmt.Errorf("%w: unknown stat %q", ErrInvalidUpgrade, stat)
	}
	if cost != price {
		return models.Character{}, fmt.Errorf("%w: %s costs %d, got %d", ErrInvalidUpgrade, stat, price, cost)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.characters[id]
	if !ok {
		return models.Character{}, ErrNotFound
	}
	if c.Balance < cost {
		return models.Character{}, ErrInsufficientFunds
	}

	var field *int
	switch stat {
	case "attack":
		field = &c.Attack
	case "defense":
		field = &c.Defense
	case "luck":
		field = &c.Luck
	}
	if *field >= MaxStat {
		return models.Character{}, ErrStatMaxed
	}

	*field++
	c.Balance -= cost
	return *c, nil
}

// Debit removes amount from a balance, refusing to go below zero.
func (r *Registry) Debit(id string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.characters[id]
	if !ok {
		return 0, ErrNotFound
	}
	if c.Balance < amount {
		return c.Balance, ErrInsufficientFunds
	}
	c.Balance -= amount
	return c.Balance, nil
}

// Credit adds amount to a balance.
func (r *Registry) Credit(id string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.characters[id]
	if !ok {
		return 0, ErrNotFound
	}
	c.Balance += amount
	return c.Balance, nil
}

// Get returns a copy of the character.
func (r *Registry) Get(id string) (models.Character, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.characters[id]
	if !ok {
		return models.Character{}, false
	}
	return *c, true
}

// Count returns the number of live characters.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.characters)
}

// Remove deletes the character and reports whether one existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.characters[id]; !ok {
		return false
	}
	delete(r.characters, id)
	return true
}
