package checkout

import (
	"strings"

	"github.com/ferreteria/storefront/services"
	"github.com/ferreteria/storefront/storeapi"
	"github.com/ferreteria/storefront/utils"
)

// LocationMethod selects how the delivery location is captured.
type LocationMethod string

const (
	LocationAuto   LocationMethod = "auto"
	LocationMap    LocationMethod = "map"
	LocationManual LocationMethod = "manual"
)

// Coordinates are stored as given; range checks belong to the backend.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationInput is one of AutoLocation, MapLocation or ManualLocation. Each
// variant carries exactly the fields it requires.
type LocationInput interface {
	Method() LocationMethod
	Validate() error
	order() *storeapi.OrderLocation
}

// AutoLocation is filled by a one-shot browser geolocation request. A failed
// request leaves Coordinates nil and records the reason; it never blocks.
type AutoLocation struct {
	Coordinates      *Coordinates
	GeolocationError string
}

func (AutoLocation) Method() LocationMethod { return LocationAuto }
func (AutoLocation) Validate() error        { return nil }

func (l AutoLocation) order() *storeapi.OrderLocation {
	o := &storeapi.OrderLocation{Method: string(LocationAuto)}
	if l.Coordinates != nil {
		o.Latitude, o.Longitude = &l.Coordinates.Latitude, &l.Coordinates.Longitude
	}
	return o
}

// MapLocation is set by clicking on the map. The last click wins.
type MapLocation struct {
	Coordinates *Coordinates
}

func (MapLocation) Method() LocationMethod { return LocationMap }

func (l MapLocation) Validate() error {
	if l.Coordinates == nil {
		return utils.FieldError("coordinates", "pick a point on the map")
	}
	return nil
}

func (l MapLocation) order() *storeapi.OrderLocation {
	return &storeapi.OrderLocation{
		Method:    string(LocationMap),
		Latitude:  &l.Coordinates.Latitude,
		Longitude: &l.Coordinates.Longitude,
	}
}

// ManualLocation is a typed address.
type ManualLocation struct {
	Address string `json:"address" validate:"required,max=200"`
	City    string `json:"city" validate:"required,max=80"`
	State   string `json:"state" validate:"required,max=80"`
	Zip     string `json:"zip" validate:"required,max=10"`
	Country string `json:"country" validate:"required,max=80"`
}

func (ManualLocation) Method() LocationMethod { return LocationManual }

func (l ManualLocation) Validate() error {
	return utils.ValidateStruct(&l)
}

func (l ManualLocation) order() *storeapi.OrderLocation {
	return &storeapi.OrderLocation{
		Method:  string(LocationManual),
		Address: l.Address,
		City:    l.City,
		State:   l.State,
		Zip:     l.Zip,
		Country: l.Country,
	}
}

// LocationForm is the flat wire shape of a location step.
type LocationForm struct {
	Method           LocationMethod `json:"method"`
	Latitude         *float64       `json:"latitude,omitempty"`
	Longitude        *float64       `json:"longitude,omitempty"`
	GeolocationError string         `json:"geolocationError,omitempty"`
	Address          string         `json:"address,omitempty"`
	City             string         `json:"city,omitempty"`
	State            string         `json:"state,omitempty"`
	Zip              string         `json:"zip,omitempty"`
	Country          string         `json:"country,omitempty"`
}

// ParseLocation turns a form into the variant named by its method. Fields that
// do not belong to the variant are dropped.
func ParseLocation(f LocationForm) (LocationInput, error) {
	var coords *Coordinates
	if f.Latitude != nil && f.Longitude != nil {
		coords = &Coordinates{Latitude: *f.Latitude, Longitude: *f.Longitude}
	}

	switch LocationMethod(strings.ToLower(string(f.Method))) {
	case LocationAuto:
		return AutoLocation{Coordinates: coords, GeolocationError: f.GeolocationError}, nil
	case LocationMap:
		return MapLocation{Coordinates: coords}, nil
	case LocationManual:
		return ManualLocation{
			Address: strings.TrimSpace(f.Address),
			City:    strings.TrimSpace(f.City),
			State:   strings.TrimSpace(f.State),
			Zip:     strings.TrimSpace(f.Zip),
			Country: strings.TrimSpace(f.Country),
		}, nil
	default:
		return nil, services.ErrInvalidInput.WithDetail("method", "location method must be one of: auto map manual")
	}
}

// LocationFormOf renders a variant back to its flat form.
func LocationFormOf(l LocationInput) *LocationForm {
	switch v := l.(type) {
	case AutoLocation:
		f := &LocationForm{Method: LocationAuto, GeolocationError: v.GeolocationError}
		if v.Coordinates != nil {
			f.Latitude, f.Longitude = &v.Coordinates.Latitude, &v.Coordinates.Longitude
		}
		return f
	case MapLocation:
		f := &LocationForm{Method: LocationMap}
		if v.Coordinates != nil {
			f.Latitude, f.Longitude = &v.Coordinates.Latitude, &v.Coordinates.Longitude
		}
		return f
	case ManualLocation:
		return &LocationForm{
			Method:  LocationManual,
			Address: v.Address,
			City:    v.City,
			State:   v.State,
			Zip:     v.Zip,
			Country: v.Country,
		}
	default:
		return nil
	}
}
