// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
)

// CoordinateEpsilon is the threshold for considering coordinates as effectively zero.
// A coordinate is "unknown" (sentinel 0,0) if both latitude and longitude are
// within this epsilon of zero. 1e-7 degrees is about 1.1cm at the equator.
const CoordinateEpsilon = 1e-7

// IsUnknownLocation returns true if the coordinates represent an unknown location.
// Use this instead of `lat == 0 && lon == 0`.
func IsUnknownLocation(lat, lon float64) bool {
	return math.Abs(lat) < CoordinateEpsilon && math.Abs(lon) < CoordinateEpsilon
}

// HasValidCoordinates returns true if the coordinates are valid (not unknown).
func HasValidCoordinates(lat, lon float64) bool {
	return !IsUnknownLocation(lat, lon)
}

// haversineDistance calculates the great-circle distance between two points
// on Earth using the Haversine formula. Returns distance in kilometers.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// HaversineKm is the exported form of the great-circle distance in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	return haversineDistance(lat1, lon1, lat2, lon2)
}

// roundTo2Decimals rounds a float64 to 2 decimal places.
func roundTo2Decimals(f float64) float64 {
	return math.Round(f*100) / 100
}

func locationHash(lat, lon float64) string {
	key := strconv.FormatFloat(roundTo2Decimals(lat), 'f', 2, 64) + "," +
		strconv.FormatFloat(roundTo2Decimals(lon), 'f', 2, 64)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// formatLocation returns a human-readable location string.
func formatLocation(city, country string) string {
	if city != "" && country != "" {
		return city + ", " + country
	}
	if country != "" {
		return country
	}
	if city != "" {
		return city
	}
	return "Unknown"
}

// fingerprint hashes a user agent string into a stable device identifier.
func fingerprint(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])
}

// Fingerprint is the device identifier stored in baselines for a user agent.
func Fingerprint(userAgent string) string {
	return fingerprint(userAgent)
}
