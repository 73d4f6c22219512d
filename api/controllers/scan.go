package controllers

import (
	"net/http"

	"github.com/circularlabs/rfid-trace/api/responses"
	"github.com/circularlabs/rfid-trace/api/validators"
	scansvc "github.com/circularlabs/rfid-trace/internal/scan"
	"github.com/circularlabs/rfid-trace/pkg/enums"
	pkgerrors "github.com/circularlabs/rfid-trace/pkg/errors"
	"github.com/circularlabs/rfid-trace/pkg/logger"
)

const maxCodeLength = 128

type scanEventPayload struct {
	RFIDChipCode      string `json:"rfidChipCode" validate:"required"`
	FilteringCode     string `json:"filteringCode" validate:"required"`
	ProductCode       string `json:"productCode" validate:"required"`
	ProductSerialCode string `json:"productSerialCode" validate:"required"`
}

type orderCountPayload struct {
	Product    string `json:"product" validate:"required"`
	OrderCount int    `json:"orderCount" validate:"min=0"`
}

type scanSubmissionRequest struct {
	MachineID        string              `json:"machineId" validate:"required"`
	SupplierCode     string              `json:"supplierCode" validate:"required"`
	SelectClientCode string              `json:"selectClientCode"`
	ProductCodes     []scanEventPayload  `json:"productCodes" validate:"required,min=1,dive"`
	EachProductCount []orderCountPayload `json:"eachProductCount" validate:"omitempty,dive"`
}

func (req scanSubmissionRequest) toSubmission() scansvc.Submission {
	submission := scansvc.Submission{
		DeviceCode:   validators.SanitizeString(req.MachineID, maxCodeLength),
		SupplierCode: validators.SanitizeString(req.SupplierCode, maxCodeLength),
	}
	if client := validators.SanitizeString(req.SelectClientCode, maxCodeLength); client != "" {
		submission.ClientCode = &client
	}
	for _, code := range req.ProductCodes {
		submission.Events = append(submission.Events, scansvc.Event{
			RFIDTagCode:     validators.SanitizeString(code.RFIDChipCode, maxCodeLength),
			DeviceFilterTag: validators.SanitizeString(code.FilteringCode, maxCodeLength),
			CategoryCode:    validators.SanitizeString(code.ProductCode, maxCodeLength),
			SerialCode:      validators.SanitizeString(code.ProductSerialCode, maxCodeLength),
		})
	}
	for _, line := range req.EachProductCount {
		submission.Orders = append(submission.Orders, scansvc.OrderLine{
			CategoryCode: validators.SanitizeString(line.Product, maxCodeLength),
			Quantity:     line.OrderCount,
		})
	}
	return submission
}

// ScanOut handles outbound shipment scans.
func ScanOut(svc scansvc.Service, logg *logger.Logger) http.HandlerFunc {
	return scanStage(svc, enums.StageShippedOut, logg)
}

// ScanIn handles warehouse receive scans.
func ScanIn(svc scansvc.Service, logg *logger.Logger) http.HandlerFunc {
	return scanStage(svc, enums.StageReceivedIn, logg)
}

// ScanReturn handles return scans.
func ScanReturn(svc scansvc.Service, logg *logger.Logger) http.HandlerFunc {
	return scanStage(svc, enums.StageReturned, logg)
}

// ScanClean handles cleaning-complete scans.
func ScanClean(svc scansvc.Service, logg *logger.Logger) http.HandlerFunc {
	return scanStage(svc, enums.StageCleaned, logg)
}

func scanStage(svc scansvc.Service, stage enums.Stage, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scan service unavailable"))
			return
		}

		var payload scanSubmissionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Process(r.Context(), stage, payload.toSubmission())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// ScanDiscard handles permanent discard scans.
func ScanDiscard(svc scansvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scan service unavailable"))
			return
		}

		var payload scanSubmissionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Discard(r.Context(), payload.toSubmission())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// ScanBatches lists recent aggregate snapshots for one pool.
func ScanBatches(svc scansvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scan service unavailable"))
			return
		}

		categoryCode := validators.SanitizeString(r.URL.Query().Get("categoryCode"), maxCodeLength)
		supplierCode := validators.SanitizeString(r.URL.Query().Get("supplierCode"), maxCodeLength)
		if categoryCode == "" || supplierCode == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "categoryCode and supplierCode are required"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.RecentBatches(r.Context(), categoryCode, supplierCode, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"batches": views})
	}
}
