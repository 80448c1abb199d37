// Copyright 2026 The Redscope Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package devserver

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"strings"
)

// RFC 6238 parameters: SHA-1, 6 digits, 30-second steps, one step of skew
// either way. Matches what common authenticator apps produce by default.
const (
	totpDigits = 6
	totpPeriod = 30
	totpSkew   = 1
)

// GenerateTOTPSecret produces a random 20-byte shared secret.
func GenerateTOTPSecret() ([]byte, error) {
	secret := make([]byte, 20)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}
	return secret, nil
}

// VerifyTOTP checks a submitted code against the shared secret at the
// given unix time.
func VerifyTOTP(secret []byte, code string, nowUnix int64) bool {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != totpDigits || len(secret) == 0 {
		return false
	}
	for _, c := range trimmed {
		if c < '0' || c > '9' {
			return false
		}
	}

	baseCounter := nowUnix / totpPeriod
	for step := int64(-totpSkew); step <= totpSkew; step++ {
		counter := baseCounter + step
		if counter < 0 {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(hotpCode(secret, counter)), []byte(trimmed)) == 1 {
			return true
		}
	}
	return false
}

// TOTPCode returns the current code for a secret. Tests and the seed
// tooling use it; the login handler only ever verifies.
func TOTPCode(secret []byte, nowUnix int64) string {
	return hotpCode(secret, nowUnix/totpPeriod)
}

func hotpCode(secret []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, secret)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	return fmt.Sprintf("%06d", bin%1000000)
}
