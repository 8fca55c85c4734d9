// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package partner

import (
	"os"
	"strings"
)

type FixPartnerUrlFunc func(url string) string

var partnerUrlFixer FixPartnerUrlFunc = DefaultFixPartnerUrlFunc

func SetPartnerUrlFixer(fixer FixPartnerUrlFunc) {
	partnerUrlFixer = fixer
}

func FixPartnerUrl(url string) string {
	return partnerUrlFixer(url)
}

// DefaultFixPartnerUrlFunc points localhost partner urls at AUTO_FIX_LOCALHOST_PARTNER_URL,
// for a server running in docker that calls partners on the host
func DefaultFixPartnerUrlFunc(url string) string {
	autofixUrl := os.Getenv("AUTO_FIX_LOCALHOST_PARTNER_URL")
	if autofixUrl != "" {
		url = strings.Replace(url, "localhost", autofixUrl, 1)
		url = strings.Replace(url, "127.0.0.1", autofixUrl, 1)
	}

	return url
}
