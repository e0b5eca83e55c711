// Package models defines the client-side certificate types persisted locally
// and synchronized with the remote gateway.
package models

import (
	"encoding/json"
	"time"
)

// DistributionBoard describes one consumer unit / distribution board on the
// installation, including its incoming supply details.
type DistributionBoard struct {
	ID          string `json:"id"`
	Designation string `json:"designation"`
	Location    string `json:"location"`
	Phases      int    `json:"phases"`
	RatingAmps  int    `json:"ratingAmps"`
	ZdbOhms     string `json:"zdbOhms"`
	Ipf         string `json:"ipf"`
}

// Circuit is a single tested circuit on a distribution board.
type Circuit struct {
	ID                string `json:"id"`
	BoardID           string `json:"boardId"`
	Number            string `json:"number"`
	Description       string `json:"description"`
	WiringType        string `json:"wiringType"`
	LiveCSA           string `json:"liveCsa"`
	CpcCSA            string `json:"cpcCsa"`
	ProtectiveDevice  string `json:"protectiveDevice"`
	DeviceRatingAmps  string `json:"deviceRatingAmps"`
	InsulationMohms   string `json:"insulationMohms"`
	ZsOhms            string `json:"zsOhms"`
	RcdOperatingTime  string `json:"rcdOperatingTime"`
	RcdTestButtonOK   bool   `json:"rcdTestButtonOk"`
	PolarityConfirmed bool   `json:"polarityConfirmed"`
}

// Observation is a coded defect or remark recorded during inspection.
// Code follows the C1/C2/C3/FI classification.
type Observation struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Location    string `json:"location"`
	PhotoID     string `json:"photoId,omitempty"`
}

// InspectionItem is one row of the inspection schedule checklist.
type InspectionItem struct {
	ID      string `json:"id"`
	Section string `json:"section"`
	Item    string `json:"item"`
	Outcome string `json:"outcome"` // acceptable / C1 / C2 / C3 / FI / N/A / LIM
	Note    string `json:"note,omitempty"`
}

// SupplyCharacteristics captures the incoming supply parameters.
type SupplyCharacteristics struct {
	EarthingArrangement string `json:"earthingArrangement"` // TN-S, TN-C-S, TT...
	NominalVoltage      string `json:"nominalVoltage"`
	NominalFrequency    string `json:"nominalFrequency"`
	Ipf                 string `json:"ipf"`
	Ze                  string `json:"ze"`
	SupplyProtection    string `json:"supplyProtection"`
}

// InstallationParticulars describes the installation under test.
type InstallationParticulars struct {
	MeansOfEarthing    string `json:"meansOfEarthing"`
	MainSwitchLocation string `json:"mainSwitchLocation"`
	MainSwitchRating   string `json:"mainSwitchRating"`
	BondingConductors  string `json:"bondingConductors"`
	WaterBonded        bool   `json:"waterBonded"`
	GasBonded          bool   `json:"gasBonded"`
}

// Declaration is the signatory block of the certificate.
type Declaration struct {
	InspectorName   string `json:"inspectorName"`
	Qualification   string `json:"qualification"`
	CompanyName     string `json:"companyName"`
	SignedAt        string `json:"signedAt,omitempty"`
	OverallOutcome  string `json:"overallOutcome"` // satisfactory / unsatisfactory
	NextInspection  string `json:"nextInspection,omitempty"`
	LimitationsNote string `json:"limitationsNote,omitempty"`
}

// CertificateData is the full nested certificate payload. The sync engine
// treats it as a deep-mergeable aggregate: the list-valued sub-collections
// and the optional sections carry the merge precedence rules, the scalar
// fields follow the remote snapshot.
type CertificateData struct {
	Reference     string `json:"reference"`
	ClientName    string `json:"clientName"`
	ClientAddress string `json:"clientAddress"`
	SiteAddress   string `json:"siteAddress"`
	Description   string `json:"description"`
	Status        string `json:"status"` // draft / in_progress / complete

	Boards          []DistributionBoard `json:"boards,omitempty"`
	Circuits        []Circuit           `json:"circuits,omitempty"`
	Observations    []Observation       `json:"observations,omitempty"`
	InspectionItems []InspectionItem    `json:"inspectionItems,omitempty"`

	Supply       *SupplyCharacteristics   `json:"supply,omitempty"`
	Installation *InstallationParticulars `json:"installation,omitempty"`
	Declaration  *Declaration             `json:"declaration,omitempty"`
}

// CertificateRecord is the unit of persistence and synchronization: the
// payload plus the dirty flag and write timestamps.
type CertificateRecord struct {
	// ID is either a temporary client-generated id (tmp- prefix) or the
	// server-assigned canonical id.
	ID string

	// Data is the full certificate payload.
	Data CertificateData

	// Dirty marks local edits not yet confirmed accepted by the gateway.
	Dirty bool

	// UpdatedAt is the time of the most recent local write.
	UpdatedAt time.Time

	// LastSyncedAt is the time of the most recent confirmed push, zero if
	// the record has never been synced.
	LastSyncedAt time.Time
}

// EncodeData renders the payload as JSON for storage or transport.
func EncodeData(d *CertificateData) ([]byte, error) {
	return json.Marshal(d)
}

// DecodeData parses a stored or received JSON payload.
func DecodeData(b []byte) (*CertificateData, error) {
	var d CertificateData
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
