/*
  Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.

  Licensed under the Apache License, Version 2.0 (the "License").
  You may not use this file except in compliance with the License.
  You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

  Unless required by applicable law or agreed to in writing, software
  distributed under the License is distributed on an "AS IS" BASIS,
  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
  See the License for the specific language governing permissions and
  limitations under the License.
*/

package utils

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var (
	RDS_DNS_PATTERN = regexp.MustCompile(
		"(?i)^(?P<instance>.+)\\." +
			"(?P<dns>proxy-|cluster-|cluster-ro-|cluster-custom-)?" +
			"(?P<domain>[a-zA-Z0-9]+\\.(?P<region>[a-zA-Z0-9\\-]+)" +
			"\\.rds\\.amazonaws\\.com\\.?)$")

	RDS_CHINA_DNS_PATTERN = regexp.MustCompile(
		"(?i)^(?P<instance>.+)\\." +
			"(?P<dns>proxy-|cluster-|cluster-ro-|cluster-custom-)?" +
			"(?P<domain>[a-zA-Z0-9]+\\.rds\\.(?P<region>[a-zA-Z0-9\\-]+)" +
			"\\.amazonaws\\.com\\.cn\\.?)$")

	RDS_OLD_CHINA_DNS_PATTERN = regexp.MustCompile(
		"(?i)^(?P<instance>.+)\\." +
			"(?P<dns>proxy-|cluster-|cluster-ro-|cluster-custom-)?" +
			"(?P<domain>[a-zA-Z0-9]+\\.(?P<region>[a-zA-Z0-9\\-]+)" +
			"\\.rds\\.amazonaws\\.com\\.cn\\.?)$")

	RDS_GOV_DNS_PATTERN = regexp.MustCompile(
		"(?i)^(?P<instance>.+)\\." +
			"(?P<dns>proxy-|cluster-|cluster-ro-|cluster-custom-)?" +
			"(?P<domain>[a-zA-Z0-9]+\\.rds\\.(?P<region>[a-zA-Z0-9\\-]+)" +
			"\\.(amazonaws\\.com\\.?|c2s\\.ic\\.gov\\.?|sc2s\\.sgov\\.gov\\.?))$")

	ipv4Pattern = regexp.MustCompile(
		"^(([1-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])\\.){1}" +
			"(([0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])\\.){2}" +
			"([0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])$")

	ipv6Pattern           = regexp.MustCompile("^[0-9a-fA-F]{1,4}(:[0-9a-fA-F]{1,4}){7}$")
	ipv6CompressedPattern = regexp.MustCompile("^(([0-9A-Fa-f]{1,4}(:[0-9A-Fa-f]{1,4}){0,5})?)" +
		"::(([0-9A-Fa-f]{1,4}(:[0-9A-Fa-f]{1,4}){0,5})?)$")

	greenInstanceHostPattern = regexp.MustCompile("(?i).*(?P<prefix>-green-[0-9a-z]{6})...*")
	greenInstanceIdPattern   = regexp.MustCompile("(?i)(.*)-green-[0-9a-z]{6}")

	dnsPatterns       = [4]*regexp.Regexp{RDS_DNS_PATTERN, RDS_CHINA_DNS_PATTERN, RDS_OLD_CHINA_DNS_PATTERN, RDS_GOV_DNS_PATTERN}
	cachedHostRegexps = sync.Map{}
	cachedDnsGroups   = sync.Map{}
)

const (
	INSTANCE_GROUP = "instance"
	DNS_GROUP      = "dns"
	DOMAIN_GROUP   = "domain"
	REGION_GROUP   = "region"
)

func IdentifyRdsUrlType(host string) RdsUrlType {
	switch {
	case host == "":
		return OTHER
	case IsIP(host):
		return IP_ADDRESS
	case IsWriterClusterDns(host):
		return RDS_WRITER_CLUSTER
	case IsReaderClusterDns(host):
		return RDS_READER_CLUSTER
	case IsRdsCustomClusterDns(host):
		return RDS_CUSTOM_CLUSTER
	case IsRdsProxyDns(host):
		return RDS_PROXY
	case IsRdsDns(host):
		return RDS_INSTANCE
	default:
		return OTHER
	}
}

func IsIP(host string) bool {
	return IsIPv4(host) || IsIPv6(host)
}

func IsIPv4(host string) bool {
	return host != "" && ipv4Pattern.MatchString(host)
}

func IsIPv6(host string) bool {
	return host != "" && (ipv6Pattern.MatchString(host) || ipv6CompressedPattern.MatchString(host))
}

func IsRdsClusterDns(host string) bool {
	dnsGroup := getDnsGroup(host)
	return strings.EqualFold(dnsGroup, "cluster-") || strings.EqualFold(dnsGroup, "cluster-ro-")
}

func IsWriterClusterDns(host string) bool {
	return strings.EqualFold(getDnsGroup(host), "cluster-")
}

func IsReaderClusterDns(host string) bool {
	return strings.EqualFold(getDnsGroup(host), "cluster-ro-")
}

func IsRdsCustomClusterDns(host string) bool {
	return strings.EqualFold(getDnsGroup(host), "cluster-custom-")
}

func IsRdsProxyDns(host string) bool {
	return strings.HasPrefix(getDnsGroup(host), "proxy-")
}

func IsRdsDns(host string) bool {
	if host == "" {
		return false
	}
	dnsRegexp, ok := findAndCacheHostRegexp(host)
	if !ok {
		return false
	}

	dnsGroup := dnsRegexp.FindStringSubmatch(host)[dnsRegexp.SubexpIndex(DNS_GROUP)]
	if dnsGroup != "" {
		cachedDnsGroups.Store(host, dnsGroup)
	}
	return true
}

func IsRdsInstance(host string) bool {
	return getDnsGroup(host) == "" && IsRdsDns(host)
}

func IsGreenInstance(host string) bool {
	return host != "" && greenInstanceHostPattern.MatchString(host)
}

// RemoveGreenInstancePrefix strips the blue/green deployment suffix from a
// green host name, e.g. "instance-green-abc123.domain" -> "instance.domain".
func RemoveGreenInstancePrefix(host string) string {
	if host == "" {
		return host
	}
	if matches := greenInstanceHostPattern.FindStringSubmatch(host); matches != nil {
		prefix := matches[greenInstanceHostPattern.SubexpIndex("prefix")]
		if prefix != "" {
			return strings.Replace(host, prefix+".", ".", 1)
		}
		return host
	}
	if matches := greenInstanceIdPattern.FindStringSubmatch(host); len(matches) > 1 {
		return matches[1]
	}
	return host
}

func getDnsGroup(host string) string {
	if host == "" {
		return ""
	}
	if dnsGroup, ok := cachedDnsGroups.Load(host); ok {
		return dnsGroup.(string)
	}

	dnsRegexp, ok := findAndCacheHostRegexp(host)
	if !ok {
		return ""
	}
	dnsGroup := dnsRegexp.FindStringSubmatch(host)[dnsRegexp.SubexpIndex(DNS_GROUP)]
	cachedDnsGroup, _ := cachedDnsGroups.LoadOrStore(host, dnsGroup)
	return cachedDnsGroup.(string)
}

func getDomainGroup(host string) string {
	if host == "" {
		return ""
	}
	dnsRegexp, ok := findAndCacheHostRegexp(host)
	if !ok {
		return ""
	}
	return dnsRegexp.FindStringSubmatch(host)[dnsRegexp.SubexpIndex(DOMAIN_GROUP)]
}

func GetRdsRegion(host string) string {
	if host == "" {
		return ""
	}
	dnsRegexp, ok := findAndCacheHostRegexp(host)
	if !ok {
		return ""
	}
	return dnsRegexp.FindStringSubmatch(host)[dnsRegexp.SubexpIndex(REGION_GROUP)]
}

// GetRdsClusterId returns the instance group of a cluster DNS endpoint, which
// identifies the cluster the endpoint belongs to.
func GetRdsClusterId(host string) string {
	if host == "" {
		return ""
	}
	dnsRegexp, ok := findAndCacheHostRegexp(host)
	if ok && dnsRegexp.FindStringSubmatch(host)[dnsRegexp.SubexpIndex(DNS_GROUP)] != "" {
		return dnsRegexp.FindStringSubmatch(host)[dnsRegexp.SubexpIndex(INSTANCE_GROUP)]
	}
	return ""
}

// GetRdsInstanceHostPattern derives an instance host template from any host in
// the cluster's domain, e.g. "?.xyz.us-east-2.rds.amazonaws.com".
func GetRdsInstanceHostPattern(host string) string {
	domainGroup := getDomainGroup(host)
	if domainGroup == "" {
		return "?"
	}
	return fmt.Sprintf("?.%s", domainGroup)
}

// GetRdsClusterHostUrl converts any cluster-related endpoint to the writer
// cluster endpoint of the same cluster.
func GetRdsClusterHostUrl(host string) string {
	if host == "" {
		return ""
	}
	for _, dnsRegexp := range dnsPatterns {
		if !dnsRegexp.MatchString(host) {
			continue
		}
		matches := dnsRegexp.FindStringSubmatch(host)
		instance := matches[dnsRegexp.SubexpIndex(INSTANCE_GROUP)]
		domain := matches[dnsRegexp.SubexpIndex(DOMAIN_GROUP)]
		if instance != "" && domain != "" {
			return fmt.Sprintf("%s.cluster-%s", instance, domain)
		}
	}
	return ""
}

func findAndCacheHostRegexp(host string) (*regexp.Regexp, bool) {
	if val, ok := cachedHostRegexps.Load(host); ok && val != nil {
		return val.(*regexp.Regexp), true
	}
	for _, dnsRegexp := range dnsPatterns {
		if dnsRegexp.MatchString(host) {
			val, _ := cachedHostRegexps.LoadOrStore(host, dnsRegexp)
			return val.(*regexp.Regexp), true
		}
	}
	return nil, false
}
