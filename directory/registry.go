package directory

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tunaaoguzhann/schoolgate/logging"
)

// Upload is an optional image attached to a new school.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Listing is one page of the directory. Total counts every school and
// Matched counts those in Schools.
type Listing struct {
	Schools []School `json:"schools"`
	Cities  []string `json:"cities"`
	States  []string `json:"states"`
	Total   int      `json:"total"`
	Matched int      `json:"matched"`
}

// Registry is the service the HTTP layer talks to.
type Registry struct {
	store  Store
	images ImageStore
	now    func() time.Time
}

func NewRegistry(store Store, images ImageStore) *Registry {
	return &Registry{store: store, images: images, now: time.Now}
}

// Add validates in, stores the image if one is given, then inserts the school.
func (r *Registry) Add(ctx context.Context, in NewSchool, upload *Upload) (School, error) {
	in, err := Validate(in)
	if err != nil {
		return School{}, err
	}

	school := School{
		Name:      in.Name,
		Address:   in.Address,
		City:      in.City,
		State:     in.State,
		Contact:   in.Contact,
		EmailID:   in.EmailID,
		CreatedAt: r.now().UTC(),
	}

	if upload != nil && upload.Body != nil {
		if r.images == nil {
			return School{}, fmt.Errorf("image uploads are disabled")
		}
		url, err := r.images.Put(ctx, upload.Filename, upload.Body)
		if err != nil {
			return School{}, fmt.Errorf("failed to upload image: %w", err)
		}
		school.Image = url
	}

	created, err := r.store.Create(ctx, school)
	if err != nil {
		if school.Image != "" {
			if rerr := r.images.Remove(context.WithoutCancel(ctx), school.Image); rerr != nil {
				logging.Logger.WithError(rerr).WithField("image", school.Image).Warn("failed to remove orphaned image")
			}
		}
		return School{}, err
	}
	logging.Logger.WithFields(logrus.Fields{
		"school_id": created.ID,
		"city":      created.City,
		"state":     created.State,
	}).Info("school added")
	return created, nil
}

func (r *Registry) Browse(ctx context.Context, q Query) (Listing, error) {
	all, err := r.store.List(ctx)
	if err != nil {
		return Listing{}, err
	}
	cities, states := Facets(all)
	matched := Filter(all, q)
	return Listing{
		Schools: matched,
		Cities:  cities,
		States:  states,
		Total:   len(all),
		Matched: len(matched),
	}, nil
}
