package main

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"go-sa-licence-decoder/models"

	"github.com/golang-jwt/jwt/v4"
	irma "github.com/privacybydesign/irmago"
)

type JwtCreator interface {
	CreateDrivingLicenceJwt(licence models.SADLData) (jwt string, err error)
}

func NewIrmaJwtCreator(privateKeyPath string,
	issuerId string,
	credential string,
	sdJwtBatchSize uint,
) (*DefaultJwtCreator, error) {
	keyBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read jwt private key: %w", err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jwt private key: %w", err)
	}

	return &DefaultJwtCreator{
		issuerId:       issuerId,
		privateKey:     privateKey,
		credential:     credential,
		sdJwtBatchSize: sdJwtBatchSize,
	}, nil
}

type DefaultJwtCreator struct {
	privateKey     *rsa.PrivateKey
	issuerId       string
	credential     string
	sdJwtBatchSize uint
}

func (jc *DefaultJwtCreator) createJwt(attributes map[string]string) (string, error) {
	issuanceRequest := jc.createIssuanceRequest(attributes)

	return irma.SignSessionRequest(
		issuanceRequest,
		jwt.GetSigningMethod(jwt.SigningMethodRS256.Alg()),
		jc.privateKey,
		jc.issuerId,
	)
}

const DATE_FORMAT_CYMD = "2006-01-02"

func (jc *DefaultJwtCreator) CreateDrivingLicenceJwt(licence models.SADLData) (string, error) {
	attributes := map[string]string{
		"licenceNumber":         licence.LicenceNumber,
		"surname":               licence.Surname,
		"initials":              licence.Initials,
		"idNumber":              licence.IDNumber,
		"idNumberType":          licence.IDNumberType,
		"idCountryOfIssue":      licence.IDCountryOfIssue,
		"licenceCountryOfIssue": licence.LicenceCountryOfIssue,
		"vehicleClasses":        licence.VehicleClasses,
		"dateOfBirth":           licence.DateOfBirth.Format(DATE_FORMAT_CYMD),
		"yearOfBirth":           licence.YearOfBirth,
		"validFrom":             licence.ValidFrom.Format(DATE_FORMAT_CYMD),
		"validTo":               licence.ValidTo.Format(DATE_FORMAT_CYMD),
		"gender":                licence.Gender,
		"over18":                licence.Over18,
		"over21":                licence.Over21,
		"over65":                licence.Over65,
	}

	return jc.createJwt(attributes)
}

// createIssuanceRequest creates an IRMA issuance request with the licence attributes.
// Issued credentials are valid for one year.
func (jc *DefaultJwtCreator) createIssuanceRequest(attributes map[string]string) *irma.IssuanceRequest {
	validity := irma.Timestamp(time.Unix(time.Now().AddDate(1, 0, 0).Unix(), 0))

	return irma.NewIssuanceRequest([]*irma.CredentialRequest{
		{
			CredentialTypeID: irma.NewCredentialTypeIdentifier(jc.credential),
			Attributes:       attributes,
			SdJwtBatchSize:   jc.sdJwtBatchSize,
			Validity:         &validity,
		},
	})
}
