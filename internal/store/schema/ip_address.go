package schema

import "time"

// IPAddress represents the ip_addresses table - one row per canonical address
type IPAddress struct {
	// Address is the canonical textual form of the IP
	Address   string `gorm:"column:address;primaryKey;type:text"`
	IsPrivate bool   `gorm:"column:is_private;not null"`
	// Kind is unknown, host-local, server-reflexive or relayed; it is only ever refined
	Kind string `gorm:"column:kind;not null;default:'unknown'"`
	// ASN and Country are not populated yet
	ASN       *int64    `gorm:"column:asn"`
	Country   *string   `gorm:"column:country"`
	FirstSeen time.Time `gorm:"column:first_seen;not null"`
	LastSeen  time.Time `gorm:"column:last_seen;not null"`

	// Associations; the foreign keys live on the child tables
	Bindings  []PlayerIPBinding `gorm:"foreignKey:Address;references:Address;constraint:OnDelete:CASCADE"`
	IPMatches []PlayerIPMatch   `gorm:"foreignKey:Address;references:Address;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the IPAddress model
func (IPAddress) TableName() string {
	return "ip_addresses"
}
