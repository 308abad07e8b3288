package persistence

// GameStateIDSeed is the gamestate key holding the last persisted id seed
const GameStateIDSeed = "unique_id_seed"

// IDGenerator issues short unique ids: a persisted base-26 seed plus a volatile a..z suffix
// The seed is persisted only when it rolls over, once every 26 ids
type IDGenerator struct {
	seed    []byte
	suffix  byte
	persist func(seed string)
}

// NewIDGenerator creates a generator that reports every new seed to persist
func NewIDGenerator(persist func(seed string)) *IDGenerator {
	return &IDGenerator{persist: persist}
}

// Init starts a session from the last persisted seed ("" for a new world)
// The seed always advances, so ids handed out after the last save are never reissued
func (g *IDGenerator) Init(last string) {
	if !validSeed(last) {
		last = "a"
	}
	g.seed = []byte(last)
	g.nextSeed()
}

// Next returns a fresh id
func (g *IDGenerator) Next() string {
	if g.seed == nil {
		g.Init("")
	}
	if g.suffix == 'z' {
		g.nextSeed()
	} else {
		g.suffix++
	}
	return string(g.seed) + string(g.suffix)
}

// Seed returns the current seed
func (g *IDGenerator) Seed() string {
	return string(g.seed)
}

// nextSeed increments the seed in base 26 (a..z, z -> aa) and resets the suffix
func (g *IDGenerator) nextSeed() {
	i := len(g.seed) - 1
	for ; i >= 0; i-- {
		if g.seed[i] == 'z' {
			g.seed[i] = 'a'
			continue
		}
		g.seed[i]++
		break
	}
	if i < 0 {
		g.seed = append([]byte{'a'}, g.seed...)
	}
	g.suffix = 'a'
	if g.persist != nil {
		g.persist(string(g.seed))
	}
}

func validSeed(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}
