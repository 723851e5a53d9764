package types

// EventCategory mirrors the category enum of the discovery contract
type EventCategory uint8

const (
	CategoryMusic EventCategory = iota
	CategorySports
	CategoryArts
	CategoryTechnology
	CategoryBusiness
	CategoryOther
)

var categoryNames = map[EventCategory]string{
	CategoryMusic:      "Music",
	CategorySports:     "Sports",
	CategoryArts:       "Arts",
	CategoryTechnology: "Technology",
	CategoryBusiness:   "Business",
	CategoryOther:      "Other",
}

// String returns the display name of the category
func (c EventCategory) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "Unknown"
}

// Event is an on-chain event listing. Amounts are decimal strings in the
// chain's display unit (ETH), counts are decimal integers.
type Event struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Date         int64         `json:"date"`
	Price        string        `json:"price"`
	TicketCount  uint64        `json:"ticketCount"`
	TicketRemain uint64        `json:"ticketRemain"`
	Organizer    string        `json:"organizer"`
	Category     EventCategory `json:"category"`
	Location     string        `json:"location,omitempty"`
	Description  string        `json:"description,omitempty"`
	ImageURL     string        `json:"imageUrl,omitempty"`
	IsFeatured   bool          `json:"isFeatured"`
}

// EventMetadata is the discovery contract's metadata record for an event
type EventMetadata struct {
	Category    EventCategory `json:"category"`
	Location    string        `json:"location"`
	Description string        `json:"description"`
	ImageHash   string        `json:"imageHash"`
	CreatedAt   string        `json:"createdAt"`
	IsFeatured  bool          `json:"isFeatured"`
	Popularity  string        `json:"popularity"`
}

// TicketHolding is the number of tickets an address holds for one event
type TicketHolding struct {
	EventID string `json:"eventId"`
	Count   string `json:"count"`
}
