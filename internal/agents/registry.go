// Package agents defines the assistant personas and routes each incoming
// message to one of them. An agent is a system prompt plus the tool names it
// may call; the orchestrator binds the names to real tools at request time.
package agents

import "fmt"

// Agent names form a closed set; the router clamps model output onto it.
const (
	LeadAgent        = "LeadAgent"
	ClinicAgent      = "ClinicAgent"
	ServiceAgent     = "ServiceAgent"
	AppointmentAgent = "AppointmentAgent"
	SQLReader        = "SQLReader"
	SmallTalk        = "SmallTalk"
)

// Agent describes one assistant persona.
type Agent struct {
	Name         string
	Description  string
	SystemPrompt string
	Tools        []string
	// AllowTools is false for personas that answer directly without the
	// tool-call pass.
	AllowTools bool
}

// Set holds the configured agents.
type Set struct {
	byName map[string]Agent
	names  []string
}

// DefaultSet returns the standard six-agent configuration.
func DefaultSet() *Set {
	return newSet(
		Agent{
			Name:        LeadAgent,
			Description: "Questions about leads: looking a lead up by id, phone, or email, and updating lead details or status.",
			SystemPrompt: "You are the lead desk of a dental CRM operations assistant. " +
				"Use the lead tools to fetch or update lead records. Never invent lead data; " +
				"if a lookup returns nothing, say so. Keep answers short and factual.",
			Tools:      []string{"lead_get", "lead_lookup", "lead_update"},
			AllowTools: true,
		},
		Agent{
			Name:        ClinicAgent,
			Description: "Questions about clinics: finding a clinic, reading its details, or changing its name, address, or contact info.",
			SystemPrompt: "You are the clinic desk of a dental CRM operations assistant. " +
				"Use the clinic tools to look clinics up by id or name and to apply updates. " +
				"When a rename is requested, confirm the clinic you matched before describing the change.",
			Tools:      []string{"clinic_get", "clinic_search", "clinic_update"},
			AllowTools: true,
		},
		Agent{
			Name:        ServiceAgent,
			Description: "Questions about the service catalog: listing services, reading one, searching by name, or editing a service.",
			SystemPrompt: "You are the service catalog desk of a dental CRM operations assistant. " +
				"Use the service tools to list, fetch, and search services. Service edits are " +
				"restricted; the platform rejects them for non-super-admin users.",
			Tools:      []string{"service_list", "service_get", "service_search", "service_update"},
			AllowTools: true,
		},
		Agent{
			Name:        AppointmentAgent,
			Description: "Scheduling: checking slot availability, booking, rescheduling, or cancelling appointments.",
			SystemPrompt: "You are the scheduling desk of a dental CRM operations assistant. " +
				"Use the appointment tools to check slots and manage bookings. Dates are YYYY-MM-DD " +
				"and times are HH:MM:SS. Never book over an occupied slot.",
			Tools: []string{"appointment_slots", "appointment_get", "appointment_create",
				"appointment_update", "appointment_cancel"},
			AllowTools: true,
		},
		Agent{
			Name:        SQLReader,
			Description: "Reporting questions that need raw data: counts, listings, or filters across leads, clinics, services, or appointments.",
			SystemPrompt: "You are the reporting desk of a dental CRM operations assistant. " +
				"Use sql_read to answer data questions. Only whitelisted tables and columns exist; " +
				"if the question needs anything else, say the data is not available.",
			Tools:      []string{"sql_read"},
			AllowTools: true,
		},
		Agent{
			Name:        SmallTalk,
			Description: "Greetings, thanks, chit-chat, and anything that does not touch CRM data.",
			SystemPrompt: "You are a friendly operations assistant for a dental CRM platform. " +
				"Answer conversationally and briefly. You have no data access in this mode; for " +
				"data questions, suggest asking about leads, clinics, services, or appointments.",
			AllowTools: false,
		},
	)
}

func newSet(list ...Agent) *Set {
	s := &Set{byName: make(map[string]Agent, len(list))}
	for _, a := range list {
		if _, exists := s.byName[a.Name]; exists {
			panic(fmt.Sprintf("agents: duplicate agent %q", a.Name))
		}
		s.byName[a.Name] = a
		s.names = append(s.names, a.Name)
	}
	return s
}

// Get returns the named agent.
func (s *Set) Get(name string) (Agent, bool) {
	a, ok := s.byName[name]
	return a, ok
}

// Names returns agent names in registration order.
func (s *Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Fallback is the agent used when routing cannot decide.
func (s *Set) Fallback() Agent {
	a, ok := s.byName[SmallTalk]
	if !ok {
		panic("agents: fallback agent missing")
	}
	return a
}
