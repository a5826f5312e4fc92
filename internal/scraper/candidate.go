package scraper

import (
	"jobmate/collector-service/internal/geo"
	"jobmate/collector-service/internal/model"
)

// IsCandidate returns true if job lies within radius miles of (myLat, myLon).
//
// Missing data never excludes a job: no job coordinates, no radius (nil or
// not positive) or no user location all accept. A distance that cannot be
// computed (out of range coordinates) accepts as well.
func IsCandidate(job *model.JobRecord, radius, myLat, myLon *float64) bool {
	if !job.HasCoordinates() {
		return true
	}
	if radius == nil || *radius <= 0 {
		return true
	}
	if myLat == nil || myLon == nil {
		return true
	}

	me := geo.Point{Lat: *myLat, Lon: *myLon}
	at := geo.Point{Lat: *job.Latitude, Lon: *job.Longitude}

	distance, err := geo.Distance(me, at, geo.Miles)
	if err != nil {
		return true
	}
	return distance <= *radius
}
