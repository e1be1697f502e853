package protocol

import "github.com/drfirst/go-clinidoc/internal/domain/prescription"

// builtins is the seed catalog. It is never written to storage.
var builtins = []Protocol{
	{
		ID:          "ivas-adulto",
		Name:        "IVAS - Adulto",
		Category:    "Respiratório",
		Subcategory: "Vias aéreas superiores",
		Reference:   "IDSA 2012 - Clinical Practice Guideline for Acute Bacterial Rhinosinusitis in Children and Adults",
		Medications: []prescription.Medication{
			{Name: "Dipirona 500mg", Dosage: "1 comprimido", Quantity: "1", Unit: prescription.UnitBox, Frequency: "6/6h se dor ou febre", Duration: "5 dias"},
			{Name: "Soro fisiológico 0,9%", Dosage: "5 mL em cada narina", Quantity: "1", Unit: prescription.UnitBottle, Frequency: "4x ao dia", Duration: "7 dias"},
		},
		Instructions: "Hidratação oral abundante. Repouso. Retornar se febre persistente por mais de 3 dias ou falta de ar.",
	},
	{
		ID:          "itu-nao-complicada",
		Name:        "ITU não complicada",
		Category:    "Urológico",
		Subcategory: "Cistite",
		Reference:   "IDSA/ESCMID 2010 - Treatment of Acute Uncomplicated Cystitis and Pyelonephritis in Women",
		Medications: []prescription.Medication{
			{Name: "Nitrofurantoína 100mg", Dosage: "1 cápsula", Quantity: "20", Unit: prescription.UnitCapsule, Frequency: "6/6h", Duration: "5 dias"},
			{Name: "Fenazopiridina 200mg", Dosage: "1 comprimido", Quantity: "6", Unit: prescription.UnitTablet, Frequency: "8/8h", Duration: "2 dias"},
		},
		Instructions: "Aumentar ingesta hídrica. Retornar se febre, dor lombar ou vômitos.",
	},
	{
		ID:          "lombalgia-aguda",
		Name:        "Lombalgia aguda",
		Category:    "Musculoesquelético",
		Subcategory: "Coluna lombar",
		Reference:   "ACP 2017 - Noninvasive Treatments for Acute, Subacute, and Chronic Low Back Pain",
		Medications: []prescription.Medication{
			{Name: "Ibuprofeno 600mg", Dosage: "1 comprimido", Quantity: "15", Unit: prescription.UnitTablet, Frequency: "8/8h após refeições", Duration: "5 dias"},
			{Name: "Ciclobenzaprina 5mg", Dosage: "1 comprimido", Quantity: "10", Unit: prescription.UnitTablet, Frequency: "à noite", Duration: "10 dias"},
		},
		Instructions: "Evitar repouso absoluto. Compressas mornas. Retornar se perda de força ou alteração urinária.",
	},
	{
		ID:          "gastroenterite",
		Name:        "Gastroenterite aguda",
		Category:    "Gastrointestinal",
		Subcategory: "Diarreia aguda",
		Reference:   "WHO 2005 - The Treatment of Diarrhoea: A Manual for Physicians and Other Senior Health Workers",
		Medications: []prescription.Medication{
			{Name: "Ondansetrona 4mg", Dosage: "1 comprimido sublingual", Quantity: "1", Unit: prescription.UnitBox, Frequency: "8/8h se náuseas", Duration: "3 dias"},
			{Name: "Sais para reidratação oral", Dosage: "1 envelope em 1 L de água", Quantity: "4", Unit: prescription.UnitSachet, Frequency: "após cada evacuação", Duration: "até melhora"},
		},
		Instructions: "Dieta leve e fracionada. Retornar se sangue nas fezes, sinais de desidratação ou febre alta.",
	},
}
