package models

type DecodeRequest struct {
	DocumentType string `json:"document_type"` // "drivers" or "vehicle"
	Barcode      string `json:"barcode"`       // Base64 encoded raw barcode bytes
}

type BatchDecodeRequest struct {
	Items []DecodeRequest `json:"items"`
}
