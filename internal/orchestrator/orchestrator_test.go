package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalops/assistant/internal/agents"
	"github.com/dentalops/assistant/internal/appserver"
	"github.com/dentalops/assistant/internal/identity"
	"github.com/dentalops/assistant/internal/llm"
	"github.com/dentalops/assistant/internal/tools"
)

// fixedNow is a Wednesday; date parsing tests depend on it.
var fixedNow = time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)

type recordedCall struct {
	tenantID int64
	entityID int64
	fields   map[string]any
}

// fakeBackend implements the tool-layer API interfaces and records every
// call so tests can assert on tenant enforcement.
type fakeBackend struct {
	lead    map[string]any
	leads   []map[string]any
	clinics []map[string]any
	slots   []appserver.Slot

	leadGets      []recordedCall
	leadUpdates   []recordedCall
	clinicUpdates []recordedCall
	created       []recordedCall
	updatedAppts  []recordedCall
	cancelled     []recordedCall
	serviceCalls  int
}

func (f *fakeBackend) Lead(_ context.Context, tenantID, leadID int64) (map[string]any, error) {
	f.leadGets = append(f.leadGets, recordedCall{tenantID: tenantID, entityID: leadID})
	if f.lead == nil {
		return nil, fmt.Errorf("lead %d not found", leadID)
	}
	return f.lead, nil
}

func (f *fakeBackend) LookupLeads(_ context.Context, tenantID int64, _, _ string, _ int) ([]map[string]any, error) {
	return f.leads, nil
}

func (f *fakeBackend) UpdateLead(_ context.Context, tenantID, leadID int64, fields map[string]any) (map[string]any, error) {
	f.leadUpdates = append(f.leadUpdates, recordedCall{tenantID: tenantID, entityID: leadID, fields: fields})
	return map[string]any{"id": leadID}, nil
}

func (f *fakeBackend) Clinic(_ context.Context, _, clinicID int64) (map[string]any, error) {
	for _, c := range f.clinics {
		if id, _ := c["id"].(float64); int64(id) == clinicID {
			return c, nil
		}
	}
	return nil, fmt.Errorf("clinic %d not found", clinicID)
}

func (f *fakeBackend) SearchClinics(_ context.Context, _ int64, _ string) ([]map[string]any, error) {
	return f.clinics, nil
}

func (f *fakeBackend) UpdateClinic(_ context.Context, tenantID, clinicID int64, fields map[string]any) (map[string]any, error) {
	f.clinicUpdates = append(f.clinicUpdates, recordedCall{tenantID: tenantID, entityID: clinicID, fields: fields})
	return map[string]any{"id": clinicID, "name": fields["name"]}, nil
}

func (f *fakeBackend) ListServices(_ context.Context, _ int64) ([]map[string]any, error) {
	f.serviceCalls++
	return nil, nil
}

func (f *fakeBackend) Service(_ context.Context, _, serviceID int64) (map[string]any, error) {
	f.serviceCalls++
	return map[string]any{"id": serviceID}, nil
}

func (f *fakeBackend) SearchServices(_ context.Context, _ int64, _ string) ([]map[string]any, error) {
	f.serviceCalls++
	return nil, nil
}

func (f *fakeBackend) UpdateService(_ context.Context, _, serviceID int64, _ map[string]any) (map[string]any, error) {
	f.serviceCalls++
	return map[string]any{"id": serviceID}, nil
}

func (f *fakeBackend) AppointmentSlots(_ context.Context, _, _ int64, _ string) ([]appserver.Slot, error) {
	return f.slots, nil
}

func (f *fakeBackend) CreateAppointment(_ context.Context, tenantID int64, fields map[string]any) (map[string]any, error) {
	f.created = append(f.created, recordedCall{tenantID: tenantID, fields: fields})
	return map[string]any{"id": 100, "date": fields["date"], "from_time": fields["from_time"], "to_time": fields["to_time"]}, nil
}

func (f *fakeBackend) UpdateAppointment(_ context.Context, tenantID, appointmentID int64, fields map[string]any) (map[string]any, error) {
	f.updatedAppts = append(f.updatedAppts, recordedCall{tenantID: tenantID, entityID: appointmentID, fields: fields})
	return map[string]any{"id": appointmentID}, nil
}

func (f *fakeBackend) CancelAppointment(_ context.Context, tenantID, appointmentID int64) (map[string]any, error) {
	f.cancelled = append(f.cancelled, recordedCall{tenantID: tenantID, entityID: appointmentID})
	return map[string]any{"id": appointmentID}, nil
}

func (f *fakeBackend) Appointment(_ context.Context, _, appointmentID int64) (map[string]any, error) {
	return map[string]any{"id": appointmentID}, nil
}

type stubIdentity struct {
	tenantID  int64
	tenantErr error
	role      identity.RoleInfo
	roleErr   error
}

func (s *stubIdentity) ResolveTenant(_ context.Context, _ string) (int64, error) {
	if s.tenantErr != nil {
		return 0, s.tenantErr
	}
	return s.tenantID, nil
}

func (s *stubIdentity) ResolveRole(_ context.Context, _ string) (identity.RoleInfo, error) {
	return s.role, s.roleErr
}

type stubRouter struct{ agent agents.Agent }

func (s *stubRouter) Route(_ context.Context, _ string) agents.Agent { return s.agent }

type stubCompleter struct {
	resp llm.Response
	err  error
	got  llm.Request
}

func (s *stubCompleter) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.got = req
	return s.resp, s.err
}

func newTestOrchestrator(t *testing.T, fb *fakeBackend, ident *stubIdentity, router agentPicker, completer llm.Completer) *Orchestrator {
	t.Helper()
	registry := tools.NewRegistry(concatTools(
		tools.LeadTools(fb),
		tools.ClinicTools(fb),
		tools.ServiceTools(fb),
		tools.AppointmentTools(fb),
	)...)
	if router == nil {
		router = &stubRouter{agent: agents.DefaultSet().Fallback()}
	}
	if completer == nil {
		completer = &stubCompleter{}
	}
	o, err := New(Config{
		Tools:               registry,
		Router:              router,
		Identity:            ident,
		Completer:           completer,
		Now:                 func() time.Time { return fixedNow },
		ServiceWriteEnabled: true,
	})
	require.NoError(t, err)
	return o
}

func concatTools(lists ...[]tools.Tool) []tools.Tool {
	var out []tools.Tool
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func superAdmin() identity.RoleInfo {
	return identity.RoleInfo{Role: identity.RoleSuperAdmin, IsSuperAdmin: true}
}

func TestLeadLookupByID(t *testing.T) {
	fb := &fakeBackend{lead: map[string]any{
		"id": float64(42), "first_name": "Jane", "last_name": "Doe",
		"contact_number": "+15551230000", "status": "new",
		"created_at": "2026-08-01 10:00:00", "updated_at": "2026-08-02 11:00:00",
	}}
	o := newTestOrchestrator(t, fb, &stubIdentity{tenantID: 7}, nil, nil)

	reply, err := o.Handle(context.Background(), "show lead id 42", "chat-1", "user-1")
	require.NoError(t, err)

	require.Len(t, fb.leadGets, 1)
	assert.Equal(t, int64(7), fb.leadGets[0].tenantID)
	assert.Equal(t, int64(42), fb.leadGets[0].entityID)

	assert.True(t, strings.HasPrefix(reply, "**Lead #42**"), "reply was %q", reply)
	assert.Contains(t, reply, "**Identity**")
	assert.Contains(t, reply, "**Timestamps**")
	assert.Contains(t, reply, "Jane Doe")
}

func TestClinicRenameSingleClinic(t *testing.T) {
	fb := &fakeBackend{clinics: []map[string]any{
		{"id": float64(3), "name": "Old Name"},
	}}
	o := newTestOrchestrator(t, fb, &stubIdentity{tenantID: 7}, nil, nil)

	reply, err := o.Handle(context.Background(), "update my clinic name to North Dental", "chat-1", "user-1")
	require.NoError(t, err)

	require.Len(t, fb.clinicUpdates, 1)
	assert.Equal(t, int64(7), fb.clinicUpdates[0].tenantID)
	assert.Equal(t, int64(3), fb.clinicUpdates[0].entityID)
	assert.Equal(t, map[string]any{"name": "North Dental"}, fb.clinicUpdates[0].fields)

	assert.True(t, strings.HasPrefix(reply, "Clinic #3 updated."), "reply was %q", reply)
	assert.Contains(t, reply, "North Dental")
}

func TestClinicRenameShapesWithoutClinicKeyword(t *testing.T) {
	// these rename shapes carry no clinic keyword, id, phone, or email; the
	// tenant gate must still fire so linked users reach the update
	for _, msg := range []string{
		"rename Old Name to North Dental",
		"Current Name: Old Name, New Name: North Dental",
	} {
		t.Run(msg, func(t *testing.T) {
			fb := &fakeBackend{clinics: []map[string]any{
				{"id": float64(3), "name": "Old Name"},
			}}
			o := newTestOrchestrator(t, fb, &stubIdentity{tenantID: 7}, nil, nil)

			reply, err := o.Handle(context.Background(), msg, "chat-1", "user-1")
			require.NoError(t, err)

			assert.NotEqual(t, MsgNotLinked, reply)
			require.Len(t, fb.clinicUpdates, 1)
			assert.Equal(t, int64(3), fb.clinicUpdates[0].entityID)
			assert.Equal(t, map[string]any{"name": "North Dental"}, fb.clinicUpdates[0].fields)
			assert.True(t, strings.HasPrefix(reply, "Clinic #3 updated."), "reply was %q", reply)
		})
	}
}

func TestClinicRenameAmbiguousListsCandidates(t *testing.T) {
	fb := &fakeBackend{clinics: []map[string]any{
		{"id": float64(3), "name": "North Dental"},
		{"id": float64(4), "name": "South Dental"},
	}}
	o := newTestOrchestrator(t, fb, &stubIdentity{tenantID: 7}, nil, nil)

	reply, err := o.Handle(context.Background(), "update my clinic name to Bright Smiles", "chat-1", "user-1")
	require.NoError(t, err)

	assert.Empty(t, fb.clinicUpdates)
	assert.Contains(t, reply, "Which clinic do you mean?")
	assert.Contains(t, reply, "Clinic #3: North Dental")
	assert.Contains(t, reply, "Clinic #4: South Dental")
}

func TestServiceUpdateNonSuperAdminRefused(t *testing.T) {
	fb := &fakeBackend{}
	ident := &stubIdentity{tenantID: 7, role: identity.RoleInfo{Role: identity.RoleAdmin}}
	o := newTestOrchestrator(t, fb, ident, nil, nil)

	reply, err := o.Handle(context.Background(), "update service 7 name to Whitening", "chat-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, MsgServiceRefusal, reply)
	assert.Zero(t, fb.serviceCalls, "refused requests must not reach service tools")
}

func TestServiceUpdateSuperAdmin(t *testing.T) {
	fb := &fakeBackend{}
	ident := &stubIdentity{tenantID: 7, role: superAdmin()}
	o := newTestOrchestrator(t, fb, ident, nil, nil)

	reply, err := o.Handle(context.Background(), "update service 9 name to Teeth Whitening Pro", "chat-1", "user-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, "✅ Service #9 updated."), "reply was %q", reply)
	assert.Equal(t, 1, fb.serviceCalls)
}

func TestRescheduleUnavailableSlotSuggestsNearestThree(t *testing.T) {
	fb := &fakeBackend{
		clinics: []map[string]any{{"id": float64(1), "name": "Main"}},
		slots: []appserver.Slot{
			{From: "14:00:00", To: "14:30:00", HasBooking: false},
			{From: "14:30:00", To: "15:00:00", HasBooking: true},
			{From: "15:00:00", To: "15:30:00", HasBooking: false},
			{From: "16:00:00", To: "16:30:00", HasBooking: false},
		},
	}
	o := newTestOrchestrator(t, fb, &stubIdentity{tenantID: 7}, nil, nil)

	reply, err := o.Handle(context.Background(), "reschedule the appointment of Linda Monroe to 2:30 pm today", "chat-1", "user-1")
	require.NoError(t, err)

	lines := strings.Split(reply, "\n")
	var suggestions []string
	for _, l := range lines {
		if strings.HasPrefix(l, "- ") {
			suggestions = append(suggestions, l)
		}
	}
	require.Len(t, suggestions, 3)
	assert.Contains(t, suggestions[0], "14:00:00")
	assert.Contains(t, suggestions[1], "15:00:00")
	assert.Contains(t, suggestions[2], "16:00:00")
	assert.Empty(t, fb.updatedAppts)
}

func TestRescheduleFreeSlotUpdates(t *testing.T) {
	fb := &fakeBackend{
		clinics: []map[string]any{{"id": float64(1), "name": "Main"}},
		slots: []appserver.Slot{
			{From: "14:30:00", To: "15:00:00", HasBooking: false},
		},
	}
	o := newTestOrchestrator(t, fb, &stubIdentity{tenantID: 7}, nil, nil)

	reply, err := o.Handle(context.Background(), "reschedule appointment 12 to 2:30 pm today", "chat-1", "user-1")
	require.NoError(t, err)

	require.Len(t, fb.updatedAppts, 1)
	assert.Equal(t, int64(12), fb.updatedAppts[0].entityID)
	assert.Equal(t, "14:30:00", fb.updatedAppts[0].fields["from_time"])
	assert.True(t, strings.HasPrefix(reply, "✅ Appointment #12 moved"), "reply was %q", reply)
}

func TestRescheduleByPatientName(t *testing.T) {
	fb := &fakeBackend{
		clinics: []map[string]any{{"id": float64(1), "name": "Main"}},
		slots: []appserver.Slot{
			{From: "14:30:00", To: "15:00:00", HasBooking: false},
		},
	}
	var queries []map[string]any
	sqlRead := tools.Tool{
		Name:       "sql_read",
		Parameters: map[string]any{"type": "object"},
		Exec: func(_ context.Context, args map[string]any) (string, error) {
			queries = append(queries, args)
			rows := []map[string]any{{"id": float64(33)}}
			if args["table"] == "appointments" {
				rows = []map[string]any{{"id": float64(12)}}
			}
			payload, err := json.Marshal(map[string]any{"ok": true, "rows": rows, "count": len(rows)})
			return string(payload), err
		},
	}
	registry := tools.NewRegistry(append(concatTools(
		tools.LeadTools(fb),
		tools.ClinicTools(fb),
		tools.ServiceTools(fb),
		tools.AppointmentTools(fb),
	), sqlRead)...)
	o, err := New(Config{
		Tools:               registry,
		Router:              &stubRouter{agent: agents.DefaultSet().Fallback()},
		Identity:            &stubIdentity{tenantID: 7},
		Completer:           &stubCompleter{},
		Now:                 func() time.Time { return fixedNow },
		ServiceWriteEnabled: true,
	})
	require.NoError(t, err)

	reply, err := o.Handle(context.Background(), "reschedule the appointment of Jane Doe to 2:30 pm today", "chat-1", "user-1")
	require.NoError(t, err)

	// the name resolves through the replica: leads by name, then the
	// patient's latest appointment, both scoped to the caller's tenant
	require.Len(t, queries, 2)
	assert.Equal(t, "leads", queries[0]["table"])
	leadWhere, _ := queries[0]["where"].(map[string]any)
	assert.Equal(t, "Jane", leadWhere["first_name"])
	assert.Equal(t, "Doe", leadWhere["last_name"])
	assert.EqualValues(t, 7, leadWhere["tenant_id"])
	assert.Equal(t, "appointments", queries[1]["table"])
	apptWhere, _ := queries[1]["where"].(map[string]any)
	assert.EqualValues(t, 33, apptWhere["lead_id"])
	assert.EqualValues(t, 7, apptWhere["tenant_id"])

	require.Len(t, fb.updatedAppts, 1)
	assert.Equal(t, int64(12), fb.updatedAppts[0].entityID)
	assert.Equal(t, "14:30:00", fb.updatedAppts[0].fields["from_time"])
	assert.True(t, strings.HasPrefix(reply, "✅ Appointment #12 moved"), "reply was %q", reply)
}

func TestRescheduleByNameWithoutReplicaAsksForID(t *testing.T) {
	fb := &fakeBackend{
		clinics: []map[string]any{{"id": float64(1), "name": "Main"}},
		slots: []appserver.Slot{
			{From: "14:30:00", To: "15:00:00", HasBooking: false},
		},
	}
	o := newTestOrchestrator(t, fb, &stubIdentity{tenantID: 7}, nil, nil)

	reply, err := o.Handle(context.Background(), "reschedule the appointment of Jane Doe to 2:30 pm today", "chat-1", "user-1")
	require.NoError(t, err)

	assert.Empty(t, fb.updatedAppts)
	assert.Contains(t, reply, "appointment id")
}

func TestBookWithExplicitTime(t *testing.T) {
	fb := &fakeBackend{}
	o := newTestOrchestrator(t, fb, &stubIdentity{tenantID: 7}, nil, nil)

	reply, err := o.Handle(context.Background(),
		"book for clinic 1 tomorrow at 10:00 for Jane Doe, email jane@x.com, gender female", "chat-1", "user-1")
	require.NoError(t, err)

	require.Len(t, fb.created, 1)
	fields := fb.created[0].fields
	assert.Equal(t, int64(7), fb.created[0].tenantID)
	assert.Equal(t, "2026-08-27", fields["date"])
	assert.Equal(t, "10:00:00", fields["from_time"])
	assert.Equal(t, "10:30:00", fields["to_time"])
	assert.Equal(t, "Jane", fields["first_name"])
	assert.Equal(t, "Doe", fields["last_name"])
	assert.Equal(t, "jane@x.com", fields["email"])
	assert.Equal(t, "female", fields["gender"])

	assert.True(t, strings.HasPrefix(reply, "✅"), "reply was %q", reply)
}

func TestCancelWithID(t *testing.T) {
	fb := &fakeBackend{}
	o := newTestOrchestrator(t, fb, &stubIdentity{tenantID: 7}, nil, nil)

	reply, err := o.Handle(context.Background(), "cancel appointment 55", "chat-1", "user-1")
	require.NoError(t, err)
	require.Len(t, fb.cancelled, 1)
	assert.Equal(t, int64(55), fb.cancelled[0].entityID)
	assert.Equal(t, "✅ Appointment #55 cancelled.", reply)
}

func TestMissingTenantBlocksBeforeIO(t *testing.T) {
	fb := &fakeBackend{}
	ident := &stubIdentity{tenantErr: identity.ErrMissingTenant}
	o := newTestOrchestrator(t, fb, ident, nil, nil)

	reply, err := o.Handle(context.Background(), "show lead id 42", "chat-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, MsgNotLinked, reply)
	assert.Empty(t, fb.leadGets, "no network I/O without a tenant")
}

func TestAgentPassEnforcesTenant(t *testing.T) {
	fb := &fakeBackend{lead: map[string]any{"id": float64(42), "first_name": "Jane"}}
	router := &stubRouter{agent: mustAgent(t, agents.LeadAgent)}
	completer := &stubCompleter{resp: llm.Response{
		ToolCalls: []openai.ToolCall{{
			ID:       "tc_1",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: "lead_get", Arguments: `{"lead_id":42}`},
		}},
	}}
	o := newTestOrchestrator(t, fb, &stubIdentity{tenantID: 7, role: superAdmin()}, router, completer)

	reply, err := o.Handle(context.Background(), "can you pull up the record we discussed?", "chat-1", "user-1")
	require.NoError(t, err)

	require.Len(t, fb.leadGets, 1)
	assert.Equal(t, int64(7), fb.leadGets[0].tenantID, "tenant id injected into model-emitted call")
	assert.True(t, strings.HasPrefix(reply, "**Lead #42**"), "reply was %q", reply)
}

func TestAgentPassBindsOnlyAgentTools(t *testing.T) {
	fb := &fakeBackend{}
	router := &stubRouter{agent: mustAgent(t, agents.ServiceAgent)}
	completer := &stubCompleter{resp: llm.Response{Text: "plain answer"}}
	ident := &stubIdentity{tenantID: 7, role: identity.RoleInfo{Role: identity.RoleAdmin}}
	o := newTestOrchestrator(t, fb, ident, router, completer)

	_, err := o.Handle(context.Background(), "what do we charge for cleanings?", "chat-1", "user-1")
	require.NoError(t, err)

	var bound []string
	for _, def := range completer.got.Tools {
		bound = append(bound, def.Function.Name)
	}
	assert.Contains(t, bound, "service_list")
	assert.NotContains(t, bound, "service_update", "non-super-admin must not see the mutation tool")
	assert.NotContains(t, bound, "lead_get")
}

func TestSmallTalkPlainCompletion(t *testing.T) {
	fb := &fakeBackend{}
	completer := &stubCompleter{resp: llm.Response{Text: "Hi! How can I help?"}}
	router := &stubRouter{agent: agents.DefaultSet().Fallback()}
	o := newTestOrchestrator(t, fb, &stubIdentity{tenantID: 7}, router, completer)

	reply, err := o.Handle(context.Background(), "hello there", "chat-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Hi! How can I help?", reply)
	assert.Empty(t, completer.got.Tools, "small talk runs without tools")
}

func TestNoToolCallsYieldsHint(t *testing.T) {
	fb := &fakeBackend{}
	router := &stubRouter{agent: mustAgent(t, agents.LeadAgent)}
	completer := &stubCompleter{resp: llm.Response{}}
	o := newTestOrchestrator(t, fb, &stubIdentity{tenantID: 7, role: superAdmin()}, router, completer)

	reply, err := o.Handle(context.Background(), "can you pull up the record we discussed?", "chat-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, MsgAppOnlyHint, reply)
}

func TestNearestFreeSlots(t *testing.T) {
	slots := []slotInfo{
		{From: "09:00:00", To: "09:30:00"},
		{From: "14:00:00", To: "14:30:00"},
		{From: "14:30:00", To: "15:00:00", Booked: true},
		{From: "15:00:00", To: "15:30:00"},
		{From: "16:00:00", To: "16:30:00"},
	}
	got := nearestFreeSlots(slots, "14:30:00", 3)
	require.Len(t, got, 3)
	for _, s := range got {
		assert.False(t, s.Booked)
	}
	assert.Equal(t, "14:00:00", got[0].From)
	assert.Equal(t, "15:00:00", got[1].From)
	assert.Equal(t, "16:00:00", got[2].From)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("North Dental", "north dental"))
	assert.Greater(t, similarity("North Dental", "North Dentl"), 0.4)
	assert.Less(t, similarity("North Dental", "zzz"), 0.4)
	assert.Equal(t, 0.0, similarity("", "anything"))
}

func mustAgent(t *testing.T, name string) agents.Agent {
	t.Helper()
	a, ok := agents.DefaultSet().Get(name)
	require.True(t, ok)
	return a
}
