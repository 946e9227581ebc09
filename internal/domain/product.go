package domain

import (
	"go.mongodb.org/mongo-driver/bson"
)

// ProductFamily identifies one of the clinic's inventory models. Every stock
// record, reservation and transfer line carries a family alongside the product
// id; the pair is location-independent and groups "the same product" across
// sites.
type ProductFamily string

const (
	FamilyPharmacy      ProductFamily = "pharmacy"
	FamilyFrames        ProductFamily = "frames"
	FamilyContactLenses ProductFamily = "contact_lenses"
	FamilyConsumables   ProductFamily = "consumables"
	FamilyReagents      ProductFamily = "reagents"
	FamilyOpticalLenses ProductFamily = "optical_lenses"
	FamilySurgical      ProductFamily = "surgical"
)

// IsValid checks if the product family is known
func (f ProductFamily) IsValid() bool {
	switch f {
	case FamilyPharmacy, FamilyFrames, FamilyContactLenses, FamilyConsumables,
		FamilyReagents, FamilyOpticalLenses, FamilySurgical:
		return true
	default:
		return false
	}
}

// AllProductFamilies lists every known family, in display order.
func AllProductFamilies() []ProductFamily {
	return []ProductFamily{
		FamilyPharmacy, FamilyFrames, FamilyContactLenses, FamilyConsumables,
		FamilyReagents, FamilyOpticalLenses, FamilySurgical,
	}
}

// ProductAttributes is the family-specific attribute variant. Each family has
// its own statically typed struct; the envelope below keeps the pair
// (family, payload) stable in BSON instead of an untyped blob.
type ProductAttributes interface {
	Family() ProductFamily
}

// DrugAttributes describes a pharmacy product (keyed by drug identifier).
type DrugAttributes struct {
	DCI      string `bson:"dci" json:"dci"` // active-substance identifier
	Dosage   string `bson:"dosage,omitempty" json:"dosage,omitempty"`
	Form     string `bson:"form,omitempty" json:"form,omitempty"` // tablet, syrup, injectable
	ATCClass string `bson:"atcClass,omitempty" json:"atcClass,omitempty"`
}

func (DrugAttributes) Family() ProductFamily { return FamilyPharmacy }

// FrameAttributes describes an optical frame.
type FrameAttributes struct {
	Brand    string `bson:"brand,omitempty" json:"brand,omitempty"`
	Model    string `bson:"model,omitempty" json:"model,omitempty"`
	Color    string `bson:"color,omitempty" json:"color,omitempty"`
	SizeCode string `bson:"sizeCode,omitempty" json:"sizeCode,omitempty"` // e.g. 52-18-140
}

func (FrameAttributes) Family() ProductFamily { return FamilyFrames }

// ContactLensAttributes describes a contact lens product.
type ContactLensAttributes struct {
	Power     float64 `bson:"power" json:"power"`
	BaseCurve float64 `bson:"baseCurve,omitempty" json:"baseCurve,omitempty"`
	Diameter  float64 `bson:"diameter,omitempty" json:"diameter,omitempty"`
	WearCycle string  `bson:"wearCycle,omitempty" json:"wearCycle,omitempty"` // daily, monthly
}

func (ContactLensAttributes) Family() ProductFamily { return FamilyContactLenses }

// OpticalLensAttributes describes an uncut ophthalmic lens.
type OpticalLensAttributes struct {
	Index    float64 `bson:"index,omitempty" json:"index,omitempty"`
	Sphere   float64 `bson:"sphere" json:"sphere"`
	Cylinder float64 `bson:"cylinder,omitempty" json:"cylinder,omitempty"`
	Coating  string  `bson:"coating,omitempty" json:"coating,omitempty"`
}

func (OpticalLensAttributes) Family() ProductFamily { return FamilyOpticalLenses }

// SupplyAttributes covers the unit-counted families: lab consumables,
// reagents and surgical supplies.
type SupplyAttributes struct {
	AttrFamily ProductFamily `bson:"family" json:"family"`
	Unit       string        `bson:"unit,omitempty" json:"unit,omitempty"` // box, vial, piece
	ColdChain  bool          `bson:"coldChain,omitempty" json:"coldChain,omitempty"`
	Sterile    bool          `bson:"sterile,omitempty" json:"sterile,omitempty"`
}

func (a SupplyAttributes) Family() ProductFamily { return a.AttrFamily }

// AttributeEnvelope persists a ProductAttributes variant as a tagged BSON
// document. The tag is the product family; decoding dispatches on it.
type AttributeEnvelope struct {
	Family  ProductFamily `bson:"family" json:"family"`
	Payload bson.Raw      `bson:"payload,omitempty" json:"payload,omitempty"`
}

// WrapAttributes builds a persistable envelope from a typed variant.
func WrapAttributes(attrs ProductAttributes) (*AttributeEnvelope, error) {
	if attrs == nil {
		return nil, nil
	}
	payload, err := bson.Marshal(attrs)
	if err != nil {
		return nil, err
	}
	return &AttributeEnvelope{Family: attrs.Family(), Payload: payload}, nil
}

// Unwrap decodes the envelope back into its typed variant.
func (e *AttributeEnvelope) Unwrap() (ProductAttributes, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Family {
	case FamilyPharmacy:
		var a DrugAttributes
		err := bson.Unmarshal(e.Payload, &a)
		return a, err
	case FamilyFrames:
		var a FrameAttributes
		err := bson.Unmarshal(e.Payload, &a)
		return a, err
	case FamilyContactLenses:
		var a ContactLensAttributes
		err := bson.Unmarshal(e.Payload, &a)
		return a, err
	case FamilyOpticalLenses:
		var a OpticalLensAttributes
		err := bson.Unmarshal(e.Payload, &a)
		return a, err
	default:
		a := SupplyAttributes{AttrFamily: e.Family}
		err := bson.Unmarshal(e.Payload, &a)
		return a, err
	}
}
