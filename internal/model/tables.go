package model

const (
	CustomersTable       = "Customers"
	ChatSessionsTable    = "ChatSessions"
	ChatMessagesTable    = "ChatMessages"
	TicketsTable         = "Tickets"
	TicketCommentsTable  = "TicketComments"
	ChatTicketLinksTable = "ChatTicketLinks"
	ActivitiesTable      = "CustomerActivities"
	CountersTable        = "Counters"
)

// TicketNumberCounter is the key of the single counter row that allocates
// sequential ticket numbers.
const TicketNumberCounter = "ticketNumber"
