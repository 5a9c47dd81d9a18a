package config

type Storage struct {
	Database Database `envPrefix:"DATABASE_"`
	File     File     `envPrefix:"FILE_"`
}

type Database struct {
	DSN string `env:"DSN,expand" envDefault:"data/trainyard.sqlite"`
}

// File.Dir holds one subdirectory per kind of stored content
// (datasets, scripts, runtimes), each with its own staging area.
type File struct {
	Dir string `env:"DIR,expand" envDefault:"data/files"`
}
