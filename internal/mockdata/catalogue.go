// Package mockdata is the offline event catalogue served when no chain
// endpoint is configured.
package mockdata

import (
	"sort"
	"strings"
	"time"

	"github.com/tixly/tixly/pkg/types"
)

// Organizer owns every catalogue event; it is the mock session address
const Organizer = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

func day(s string) int64 {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t.Unix()
}

var events = []types.Event{
	{
		ID:           "1",
		Name:         "Summer Music Festival",
		Date:         day("2024-07-15"),
		Price:        "0.05",
		TicketCount:  1000,
		TicketRemain: 650,
		Organizer:    Organizer,
		Category:     types.CategoryMusic,
		Location:     "Central Park, New York",
		Description:  "Join us for a day of amazing music performances from top artists across genres.",
		ImageURL:     "https://images.unsplash.com/photo-1501281668745-f7f57925c3b4?auto=format&fit=crop&w=1050&q=80",
		IsFeatured:   true,
	},
	{
		ID:           "2",
		Name:         "Tech Conference 2024",
		Date:         day("2024-09-10"),
		Price:        "0.1",
		TicketCount:  500,
		TicketRemain: 200,
		Organizer:    Organizer,
		Category:     types.CategoryTechnology,
		Location:     "Convention Center, San Francisco",
		Description:  "Explore the latest in AI, blockchain, and other cutting-edge technologies.",
		ImageURL:     "https://images.unsplash.com/photo-1540575467063-178a50c2df87?auto=format&fit=crop&w=1170&q=80",
		IsFeatured:   true,
	},
	{
		ID:           "3",
		Name:         "Blockchain Summit",
		Date:         day("2024-08-22"),
		Price:        "0.08",
		TicketCount:  300,
		TicketRemain: 120,
		Organizer:    Organizer,
		Category:     types.CategoryBusiness,
		Location:     "Grand Hotel, Singapore",
		Description:  "Network with blockchain experts and learn about the future of decentralized finance.",
		ImageURL:     "https://images.unsplash.com/photo-1526304640581-d334cdbbf45e?auto=format&fit=crop&w=1170&q=80",
	},
	{
		ID:           "4",
		Name:         "Art Exhibition",
		Date:         day("2024-07-28"),
		Price:        "0.03",
		TicketCount:  200,
		TicketRemain: 180,
		Organizer:    Organizer,
		Category:     types.CategoryArts,
		Location:     "Modern Gallery, London",
		Description:  "Experience contemporary art from emerging artists around the world.",
		ImageURL:     "https://images.unsplash.com/photo-1501785888041-af3ef285b470?auto=format&fit=crop&w=1170&q=80",
		IsFeatured:   true,
	},
	{
		ID:           "5",
		Name:         "Sports Championship",
		Date:         day("2024-08-05"),
		Price:        "0.06",
		TicketCount:  5000,
		TicketRemain: 2000,
		Organizer:    Organizer,
		Category:     types.CategorySports,
		Location:     "Main Stadium, Berlin",
		Description:  "Watch the final match of this year's championship with the best teams competing.",
		ImageURL:     "https://images.unsplash.com/photo-1471295253337-3ceaaedca402?auto=format&fit=crop&w=1168&q=80",
	},
}

var tickets = []types.TicketHolding{
	{EventID: "1", Count: "2"},
	{EventID: "4", Count: "1"},
}

var favorites = map[string]bool{"2": true, "4": true}

// Events returns every catalogue event
func Events() []types.Event {
	return append([]types.Event(nil), events...)
}

// Event looks an event up by ID
func Event(id string) (types.Event, bool) {
	for _, e := range events {
		if e.ID == id {
			return e, true
		}
	}
	return types.Event{}, false
}

// Featured returns up to count featured event IDs; count 0 means all
func Featured(count int) []string {
	var ids []string
	for _, e := range events {
		if e.IsFeatured {
			ids = append(ids, e.ID)
		}
	}
	return limit(ids, count)
}

// ByCategory returns up to count event IDs in category; count 0 means all
func ByCategory(category types.EventCategory, count int) []string {
	var ids []string
	for _, e := range events {
		if e.Category == category {
			ids = append(ids, e.ID)
		}
	}
	return limit(ids, count)
}

// Metadata returns the discovery metadata for an event
func Metadata(id string) (types.EventMetadata, bool) {
	e, ok := Event(id)
	if !ok {
		return types.EventMetadata{}, false
	}
	return types.EventMetadata{
		Category:    e.Category,
		Location:    e.Location,
		Description: e.Description,
		ImageHash:   e.ImageURL,
		CreatedAt:   "0",
		IsFeatured:  e.IsFeatured,
		Popularity:  "0",
	}, true
}

// Tickets returns the holdings of owner. Only the organizer holds tickets.
func Tickets(owner string) []types.TicketHolding {
	if !strings.EqualFold(owner, Organizer) {
		return nil
	}
	return append([]types.TicketHolding(nil), tickets...)
}

// IsFavorite reports whether owner has favorited the event
func IsFavorite(owner, id string) bool {
	return strings.EqualFold(owner, Organizer) && favorites[id]
}

// Favorites returns the IDs owner has favorited, in ascending order
func Favorites(owner string) []string {
	if !strings.EqualFold(owner, Organizer) {
		return nil
	}
	ids := make([]string, 0, len(favorites))
	for id := range favorites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func limit(ids []string, count int) []string {
	if count > 0 && len(ids) > count {
		return ids[:count]
	}
	return ids
}
