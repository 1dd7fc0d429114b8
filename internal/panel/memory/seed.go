package memory

import "github.com/r-heap47/gamehost/internal/panel"

// Well-known ids of the default seed.
const (
	SeedLocationID      int64 = 1
	SeedNodeA           int64 = 1
	SeedNodeB           int64 = 2
	SeedServiceAccount  int64 = 1
	SeedPublicIP              = "203.0.113.5"
	SeedFirstPort             = 25565
	SeedPortsPerNode          = 10
	SeedServiceUsername       = "gamehost"
)

// DefaultSeed describes a small two-node panel with a Minecraft catalog and a
// service account. It is used when no seed is configured.
func DefaultSeed() Config {
	last := SeedFirstPort + SeedPortsPerNode - 1

	return Config{
		Locations: []panel.Location{
			{ID: SeedLocationID, Short: "eu", Long: "Europe"},
		},
		Nodes: []panel.Node{
			{ID: SeedNodeA, Name: "node-a", LocationID: SeedLocationID, Memory: "16384", AllocatedMemory: "0"},
			{ID: SeedNodeB, Name: "node-b", LocationID: SeedLocationID, Memory: "8192", AllocatedMemory: "0"},
		},
		Allocations: append(
			Allocations(SeedNodeA, SeedPublicIP, "", SeedFirstPort, last),
			Allocations(SeedNodeB, "0.0.0.0", "", SeedFirstPort, last)...,
		),
		Eggs: []panel.Egg{
			{
				ID:          1,
				NestID:      1,
				Name:        "Paper",
				DockerImage: "ghcr.io/pterodactyl/yolks:java_21",
				Startup:     "java -Xms128M -Xmx{{SERVER_MEMORY}}M -jar {{SERVER_JARFILE}}",
			},
			{
				ID:          2,
				NestID:      1,
				Name:        "Vanilla Minecraft",
				DockerImage: "ghcr.io/pterodactyl/yolks:java_21",
				Startup:     "java -Xms128M -Xmx{{SERVER_MEMORY}}M -jar {{SERVER_JARFILE}}",
			},
		},
		Users: []panel.User{
			{
				ID:        SeedServiceAccount,
				Username:  SeedServiceUsername,
				Email:     "gamehost@example.net",
				FirstName: SeedServiceUsername,
				LastName:  "Service",
			},
		},
	}
}
