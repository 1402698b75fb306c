package game

import "time"

// Gameplay tuning constants. Durations expressed in seconds are converted to
// tick deadlines through Config.TicksFor, so behavior is identical across
// restarts and tick rates.
const (
	defaultTickRate         = 20
	defaultSphereRadius     = 100.0
	defaultMaxPlayers       = 8
	defaultAsteroidTarget   = 12
	defaultNpcTarget        = 6
	defaultPowerUpTarget    = 4
	defaultNodesPerWave     = 12
	nodeInteriorFraction    = 0.6
	defaultSyncRadius       = 80.0
	basePlayerSpeed         = 12.0
	thrustAccel             = 24.0 // reaches base speed in half a second
	velocityClampFactor     = 2.0
	playerMaxHealth         = 100.0
	contactDamage           = 15.0
	npcLaserDamage          = 10.0
	asteroidLaserDamage     = 25.0
	healthPickupAmount      = 35.0
	speedBoostFactor        = 1.6
	laserSpeed              = 60.0
	laserLifeSeconds        = 1.6
	laserRadius             = 0.8
	playerShootCooldownSec  = 0.25
	npcShootCooldownSec     = 1.5
	npcSpeed                = 9.0
	npcFireRange            = 40.0
	npcCircleRange          = 2.5
	npcRadius               = 1.4
	asteroidMinRadius       = 1.5
	asteroidMaxRadius       = 4.0
	asteroidMaxHealth       = 50.0
	powerUpRadius           = 1.2
	nodeRadius              = 3.0
	nodeNudgeFactor         = 0.05
	allyNudgeFactor         = 0.01
	nodeLockDistance        = 8.0
	nodeReachBonus          = 20.0
	conversionRate          = 2.0 // progress per second; full conversion in 0.5s
	invincibilitySeconds    = 1.0
	speedBoostSeconds       = 8.0
	multishotSeconds        = 12.0
	shieldSeconds           = 10.0
	orbitDistance           = 6.0
	hintMinIntervalSeconds  = 4.0
	hintMaxIntervalSeconds  = 7.0
	teleportMinDistance     = 10.0
	teleportMaxDistance     = 20.0
	teleportSafeDistance    = 8.0
	teleportRetries         = 10
	allDeadGraceSeconds     = 2.0
	milestoneEveryConnected = 3
)

// Config tunes a single room's world.
type Config struct {
	TickRate       int
	SphereRadius   float64
	MaxPlayers     int
	AsteroidTarget int
	NpcTarget      int
	PowerUpTarget  int
	NodesPerWave   int
	SyncRadius     float64
	Seed           int64
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		TickRate:       defaultTickRate,
		SphereRadius:   defaultSphereRadius,
		MaxPlayers:     defaultMaxPlayers,
		AsteroidTarget: defaultAsteroidTarget,
		NpcTarget:      defaultNpcTarget,
		PowerUpTarget:  defaultPowerUpTarget,
		NodesPerWave:   defaultNodesPerWave,
		SyncRadius:     defaultSyncRadius,
		Seed:           time.Now().UnixNano(),
	}
}

// Normalized returns a copy with out-of-range fields replaced by defaults.
func (c Config) Normalized() Config {
	d := DefaultConfig()
	if c.TickRate < 1 || c.TickRate > 60 {
		c.TickRate = d.TickRate
	}
	if c.SphereRadius <= 0 {
		c.SphereRadius = d.SphereRadius
	}
	if c.MaxPlayers < 1 {
		c.MaxPlayers = d.MaxPlayers
	}
	if c.AsteroidTarget < 0 {
		c.AsteroidTarget = d.AsteroidTarget
	}
	if c.NpcTarget < 0 {
		c.NpcTarget = d.NpcTarget
	}
	if c.PowerUpTarget < 0 {
		c.PowerUpTarget = d.PowerUpTarget
	}
	if c.NodesPerWave < 1 {
		c.NodesPerWave = d.NodesPerWave
	}
	if c.SyncRadius <= 0 {
		c.SyncRadius = d.SyncRadius
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// TickInterval returns the wall-clock duration of one tick.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// MaxStepSeconds bounds one integration window to three tick intervals at
// the configured rate, so physics cannot explode through a single huge step.
func (c Config) MaxStepSeconds() float64 {
	return 3.0 / float64(c.TickRate)
}

// TicksFor converts a duration in seconds to a tick count, rounding up so
// short windows never collapse to zero.
func (c Config) TicksFor(seconds float64) uint64 {
	ticks := seconds * float64(c.TickRate)
	n := uint64(ticks)
	if float64(n) < ticks {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}
