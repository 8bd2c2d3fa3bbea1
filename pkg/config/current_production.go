//go:build production

package config

func Current() Environment { return production }
