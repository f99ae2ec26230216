// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package env

import (
	"sync"

	"github.com/spf13/viper"
)

const (
	Local      = "local"
	Production = "production"
	Testing    = "testing"
)

var (
	Env string

	once sync.Once
)

func IsLocal() bool {
	return Env == Local
}

func IsProduction() bool {
	return Env == Production
}

func IsTesting() bool {
	return Env == Testing
}

// KeyNamespace returns the store key prefix for isolated runs. Production
// deployments never prefix keys, whatever KEY_NAMESPACE says.
func KeyNamespace() string {
	if IsProduction() {
		return ""
	}
	return viper.GetString("key_namespace")
}

func init() {
	once.Do(func() {
		viper.AutomaticEnv()
		Env = viper.GetString("ENV")
		if Env == "" {
			Env = Local
		}
	})
}
