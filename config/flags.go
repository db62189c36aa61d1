package config

import "flag"

// Get loads the configuration selected by the --config flag.
func Get() (Config, error) {
	path := flag.String("config", "", "path to yaml config")
	flag.Parse()

	return Load(*path)
}
