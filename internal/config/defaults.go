package config

// The CodeCarbon development stack: the API server, its Postgres
// store, and a pgAdmin UI for poking at it. `carbonstack init` writes
// this topology out as the starting stack file.
//
// The connection string the API server consumes is assembled from the
// same four DATABASE_* variables that configure Postgres itself, so a
// single override (say DATABASE_PASS) moves both sides in lockstep.
// Validate checks that this stays true after editing.

const (
	// DefaultNetwork is the shared network joining every service.
	DefaultNetwork = "codecarbon_net"

	// Named volumes. These survive `carbonstack down`; docker volume rm
	// is the only way to destroy the data.
	PostgresVolume = "postgres_codecarbon_data"
	PgadminVolume  = "pgadmin_codecarbon_data"
)

func boolPtr(b bool) *bool { return &b }

// DefaultStack returns the built-in CodeCarbon topology.
func DefaultStack() *Stack {
	return &Stack{
		Name:    "codecarbon",
		Version: "1",
		Services: map[string]Service{
			"carbonserver": {
				Build: "./carbonserver",
				Ports: []string{"8008:8000"},
				Environment: []string{
					"DATABASE_URL=postgresql://${DATABASE_USER:-codecarbon-user}:${DATABASE_PASS:-supersecret}@${DATABASE_HOST:-postgres}/${DATABASE_NAME:-codecarbon_db}",
				},
				Volumes: []string{
					// Live source mount for development; the anonymous
					// volume masks the tooling cache so host and
					// container caches never fight over the same files.
					"./carbonserver:/carbonserver",
					"/carbonserver/.mypy_cache",
				},
				Networks:  []string{DefaultNetwork},
				DependsOn: []string{"postgres"},
				ReadyPort: "8000",
			},
			"postgres": {
				Image: "postgres:13",
				Ports: []string{"5480:5432"},
				Environment: []string{
					"POSTGRES_USER=${DATABASE_USER:-codecarbon-user}",
					"POSTGRES_PASSWORD=${DATABASE_PASS:-supersecret}",
					"POSTGRES_DB=${DATABASE_NAME:-codecarbon_db}",
				},
				Volumes:  []string{PostgresVolume + ":/var/lib/postgresql/data"},
				Networks: []string{DefaultNetwork},
				Restart:  "unless-stopped",
				Healthcheck: &Healthcheck{
					Test:     []string{"CMD-SHELL", "pg_isready -U ${DATABASE_USER:-codecarbon-user}"},
					Interval: "5s",
					Timeout:  "3s",
					Retries:  5,
				},
			},
			"pgadmin": {
				Image: "dpage/pgadmin4",
				Ports: []string{"${PGADMIN_PORT:-5080}:80"},
				Environment: []string{
					"PGADMIN_DEFAULT_EMAIL=${PGADMIN_DEFAULT_EMAIL:-test@test.com}",
					"PGADMIN_DEFAULT_PASSWORD=${PGADMIN_DEFAULT_PASSWORD:-test}",
				},
				Volumes: []string{
					// Externally prepared credential and server-list
					// files; pgAdmin only ever reads them.
					"./carbonserver/docker/pgpassfile:/pgadmin4/pgpassfile:ro",
					"./carbonserver/docker/pgadmin-servers.json:/pgadmin4/servers.json:ro",
					PgadminVolume + ":/var/lib/pgadmin",
				},
				Networks:  []string{DefaultNetwork},
				DependsOn: []string{"postgres"},
				Restart:   "unless-stopped",
			},
			// The measurement package service from the original stack.
			// It was never wired to a build, so it stays declared but
			// disabled until someone decides what it should run.
			"package": {
				Build:    "./",
				Enabled:  boolPtr(false),
				Networks: []string{DefaultNetwork},
			},
		},
		Networks: map[string]Network{
			DefaultNetwork: {Driver: "bridge"},
		},
		Volumes: map[string]Volume{
			PostgresVolume: {},
			PgadminVolume:  {},
		},
	}
}
