package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go-sa-licence-decoder/barcode"
	"go-sa-licence-decoder/document/sadl"
	"go-sa-licence-decoder/document/vehicle"
	"go-sa-licence-decoder/models"
)

// Document type discriminators accepted by the decode endpoints.
const (
	DocumentTypeDrivers = "drivers"
	DocumentTypeVehicle = "vehicle"
)

var ErrUnknownDocumentType = errors.New("unknown document type")

// DecodedDocument holds exactly one of the two record kinds.
type DecodedDocument struct {
	Version        barcode.Version         `json:"version"`
	DrivingLicence *sadl.DrivingLicence    `json:"drivers_licence,omitempty"`
	VehicleLicence *vehicle.VehicleLicence `json:"vehicle_licence,omitempty"`
}

// abstract interfaces for easier testing

type DocumentDecoder interface {
	Decode(documentType string, raw []byte) (DecodedDocument, error)
}

type DrivingLicenceConverter interface {
	ToDrivingLicenceData(sadl.DrivingLicence) (models.SADLData, error)
}

// Production implementations

type LicenceDecoderImpl struct {
	keys *barcode.KeySet
}

func NewLicenceDecoder(keys *barcode.KeySet) *LicenceDecoderImpl {
	return &LicenceDecoderImpl{keys: keys}
}

func (d *LicenceDecoderImpl) Decode(documentType string, raw []byte) (DecodedDocument, error) {
	switch documentType {
	case DocumentTypeDrivers:
		licence, err := sadl.Parse(raw, d.keys)
		if err != nil {
			return DecodedDocument{}, err
		}
		return DecodedDocument{Version: licence.Version, DrivingLicence: licence}, nil
	case DocumentTypeVehicle:
		licence, err := vehicle.Parse(raw, d.keys)
		if err != nil {
			return DecodedDocument{}, err
		}
		return DecodedDocument{Version: licence.Version, VehicleLicence: licence}, nil
	}
	return DecodedDocument{}, fmt.Errorf("%w: %q", ErrUnknownDocumentType, documentType)
}

type DrivingLicenceConverterImpl struct{}

func (DrivingLicenceConverterImpl) ToDrivingLicenceData(licence sadl.DrivingLicence) (models.SADLData, error) {
	return sadl.ToDrivingLicenceData(licence, time.Now())
}

// decodeBarcode accepts url-safe or standard base64, with or without padding.
func decodeBarcode(s string) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}

	data, err = base64.URLEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}

	data, err = base64.RawStdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}

	return base64.StdEncoding.DecodeString(s)
}
