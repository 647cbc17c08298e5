/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/zalando/go-keyring"
)

// Service/keys for the OS keyring.
const (
	keyringService  = "NotesBoard"
	keyringPassword = "backend_password"
)

// TokenStore abstracts the keyring so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var tokenStore TokenStore = osKeyring{}

// SetTokenStore swaps the keyring implementation and returns a func restoring the previous one.
func SetTokenStore(ts TokenStore) (restore func()) {
	prev := tokenStore
	tokenStore = ts
	return func() { tokenStore = prev }
}

// SaveBackendPassword stores the Postgres password in the OS keyring. An empty password deletes it.
func SaveBackendPassword(pw string) error {
	if pw == "" {
		err := tokenStore.Delete(keyringService, keyringPassword)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return tokenStore.Set(keyringService, keyringPassword, pw)
}

// ResolveDSN returns the backend DSN with the keyring password filled in when the
// configured URL carries a user but no password. Other DSNs are returned unchanged.
func ResolveDSN(b BackendConfig) (string, error) {
	dsn := strings.TrimSpace(b.DSN)
	if dsn == "" {
		return "", errors.New("backend dsn is not configured")
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return dsn, nil
	}
	if _, has := u.User.Password(); has {
		return dsn, nil
	}
	pw, err := tokenStore.Get(keyringService, keyringPassword)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return dsn, nil
	case err != nil:
		return "", fmt.Errorf("read keyring: %w", err)
	}
	u.User = url.UserPassword(u.User.Username(), pw)
	return u.String(), nil
}
