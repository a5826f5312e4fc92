package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"jobmate/collector-service/internal/apperr"
	"jobmate/collector-service/internal/geo"
	"jobmate/collector-service/internal/model"
	"jobmate/collector-service/internal/ratelimit"
)

// PlaceResolver turns a free-form place name into coordinates.
type PlaceResolver interface {
	Geocode(ctx context.Context, place string) (geo.Point, error)
}

// ProfileStore reads and writes search profiles.
type ProfileStore struct {
	pool     *pgxpool.Pool
	resolver PlaceResolver
	logger   *zap.Logger
}

// NewProfileStore returns a configured ProfileStore. resolver may be nil, in
// which case SetLocation is unavailable.
func NewProfileStore(pool *pgxpool.Pool, resolver PlaceResolver, logger *zap.Logger) *ProfileStore {
	return &ProfileStore{pool: pool, resolver: resolver, logger: logger.Named("profiles")}
}

const selectProfileColumns = `
	SELECT id, name, added_at, my_location, latitude, longitude, filter_data,
	       resume_filename, resume IS NOT NULL
	FROM profiles`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var (
		p       model.Profile
		filters []byte
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.AddedAt, &p.MyLocation, &p.Latitude, &p.Longitude, &filters,
		&p.ResumeFilename, &p.HasResume,
	); err != nil {
		return nil, err
	}
	f, err := decodeFilters(filters)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	p.Filters = f
	return &p, nil
}

// decodeFilters overlays the stored filter_data on the defaults, so keys
// missing from older rows keep their default value.
func decodeFilters(raw []byte) (model.FilterConfig, error) {
	f := model.DefaultFilterConfig()
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("decode filter_data: %w", err)
	}
	return f, nil
}

// List returns all profiles ordered by name.
func (s *ProfileStore) List(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.pool.Query(ctx, selectProfileColumns+` ORDER BY name`)
	if err != nil {
		return nil, apperr.Persistence("list profiles", err)
	}
	defer rows.Close()

	profiles := make([]model.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, apperr.Persistence("scan profile", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list profiles", err)
	}
	return profiles, nil
}

// Names returns the names of all profiles, ordered.
func (s *ProfileStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM profiles ORDER BY name`)
	if err != nil {
		return nil, apperr.Persistence("list profile names", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperr.Persistence("list profile names", err)
	}
	return names, nil
}

// Load returns the profile called name, or an apperr NotFound error.
func (s *ProfileStore) Load(ctx context.Context, name string) (*model.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, selectProfileColumns+` WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(fmt.Sprintf("profile %q not found", name), nil)
	}
	if err != nil {
		return nil, apperr.Persistence("load profile", err)
	}
	return p, nil
}

// Save creates the profile or applies upd to the existing one. Only non-nil
// fields of upd change; coordinates change only when both are given.
func (s *ProfileStore) Save(ctx context.Context, name string, upd model.ProfileUpdate) (*model.Profile, error) {
	if err := model.ValidateProfileName(name); err != nil {
		return nil, apperr.InvalidInput(err.Error(), nil)
	}
	if upd.Filters != nil {
		f := *upd.Filters
		f.Normalize()
		if err := f.Validate(); err != nil {
			return nil, apperr.InvalidInput(err.Error(), err)
		}
		upd.Filters = &f
	}

	var saved *model.Profile
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := scanProfile(tx.QueryRow(ctx, selectProfileColumns+` WHERE name = $1 FOR UPDATE`, name))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		merged := MergeProfile(current, name, upd)
		filters, err := json.Marshal(merged.Filters)
		if err != nil {
			return fmt.Errorf("encode filter_data: %w", err)
		}

		saved, err = scanProfile(tx.QueryRow(ctx,
			`INSERT INTO profiles (name, my_location, latitude, longitude, filter_data, resume_filename, resume)
			 VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
			 ON CONFLICT (name) DO UPDATE SET
			   my_location     = EXCLUDED.my_location,
			   latitude        = EXCLUDED.latitude,
			   longitude       = EXCLUDED.longitude,
			   filter_data     = EXCLUDED.filter_data,
			   resume_filename = EXCLUDED.resume_filename,
			   resume          = COALESCE(EXCLUDED.resume, profiles.resume)
			 RETURNING id, name, added_at, my_location, latitude, longitude, filter_data,
			           resume_filename, resume IS NOT NULL`,
			merged.Name, merged.MyLocation, merged.Latitude, merged.Longitude, string(filters),
			merged.ResumeFilename, upd.Resume,
		))
		return err
	})
	if err != nil {
		return nil, apperr.Persistence("save profile", err)
	}

	s.logger.Info("profile saved", zap.String("profile", name))
	return saved, nil
}

// MergeProfile applies upd on top of current (nil for a new profile). A new
// profile starts from the default filters.
func MergeProfile(current *model.Profile, name string, upd model.ProfileUpdate) model.Profile {
	var p model.Profile
	if current != nil {
		p = *current
	} else {
		p = model.Profile{Name: name, Filters: model.DefaultFilterConfig()}
	}

	if upd.MyLocation != nil {
		p.MyLocation = upd.MyLocation
	}
	if upd.Latitude != nil && upd.Longitude != nil {
		p.Latitude = upd.Latitude
		p.Longitude = upd.Longitude
	}
	if upd.Filters != nil {
		p.Filters = *upd.Filters
	}
	if upd.ResumeFilename != nil {
		p.ResumeFilename = upd.ResumeFilename
	}
	if upd.Resume != nil {
		p.HasResume = true
	}
	return p
}

// ClearResume removes the stored resume of profile name.
func (s *ProfileStore) ClearResume(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET resume = NULL, resume_filename = NULL WHERE name = $1`, name)
	if err != nil {
		return apperr.Persistence("clear resume", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(fmt.Sprintf("profile %q not found", name), nil)
	}
	return nil
}

// SetLocation geocodes place and stores it with its coordinates on profile
// name, creating the profile when needed. The lookup counts against the
// profile's own geocoder quota.
func (s *ProfileStore) SetLocation(ctx context.Context, name, place string) (*model.Profile, error) {
	if s.resolver == nil {
		return nil, apperr.Internal("no geocoder configured", nil)
	}
	ctx = ratelimit.WithCaller(ctx, name)
	pt, err := s.resolver.Geocode(ctx, place)
	if err != nil {
		return nil, err
	}
	s.logger.Info("location resolved",
		zap.String("profile", name),
		zap.String("place", place),
		zap.Float64("lat", pt.Lat),
		zap.Float64("lon", pt.Lon))

	return s.Save(ctx, name, model.ProfileUpdate{
		MyLocation: &place,
		Latitude:   &pt.Lat,
		Longitude:  &pt.Lon,
	})
}
