package mqtt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestTopicsFor(t *testing.T) {
	topics := TopicsFor("enviro_livingroom")

	if topics.Root != "enviro_livingroom" {
		t.Errorf("Root = %s", topics.Root)
	}
	if topics.Availability != "enviro_livingroom/status" {
		t.Errorf("Availability = %s", topics.Availability)
	}
	if topics.Command != "enviro_livingroom/cmd" {
		t.Errorf("Command = %s", topics.Command)
	}
	if topics.SetWildcard != "enviro_livingroom/set/+" {
		t.Errorf("SetWildcard = %s", topics.SetWildcard)
	}
	if got := topics.State("bme280/temperature"); got != "enviro_livingroom/bme280/temperature" {
		t.Errorf("State = %s", got)
	}
	if got := topics.Set("temp_offset"); got != "enviro_livingroom/set/temp_offset" {
		t.Errorf("Set = %s", got)
	}
}

func TestBuildDiscoveryDocuments(t *testing.T) {
	topics := TopicsFor("enviro_test")
	docs := BuildDiscoveryDocuments(topics, "homeassistant", "0.1.0")

	wantCount := len(Metrics) + len(Buttons) + len(Numbers)
	if len(docs) != wantCount {
		t.Fatalf("got %d documents, want %d", len(docs), wantCount)
	}

	seenTopics := make(map[string]bool)
	seenUniqueIDs := make(map[string]bool)
	for _, doc := range docs {
		if seenTopics[doc.Topic] {
			t.Errorf("duplicate discovery topic %s", doc.Topic)
		}
		seenTopics[doc.Topic] = true

		if !strings.HasPrefix(doc.Topic, "homeassistant/") {
			t.Errorf("topic %s missing discovery prefix", doc.Topic)
		}
		if !strings.HasSuffix(doc.Topic, "/config") {
			t.Errorf("topic %s missing /config suffix", doc.Topic)
		}

		var cfg map[string]interface{}
		if err := json.Unmarshal(doc.Payload, &cfg); err != nil {
			t.Fatalf("payload for %s is not valid JSON: %v", doc.Topic, err)
		}

		uid, _ := cfg["unique_id"].(string)
		if uid == "" {
			t.Errorf("%s has no unique_id", doc.Topic)
		}
		if seenUniqueIDs[uid] {
			t.Errorf("duplicate unique_id %s", uid)
		}
		seenUniqueIDs[uid] = true

		if got, _ := cfg["availability_topic"].(string); got != "enviro_test/status" {
			t.Errorf("%s availability_topic = %s", doc.Topic, got)
		}

		device, _ := cfg["device"].(map[string]interface{})
		if device == nil {
			t.Fatalf("%s has no device block", doc.Topic)
		}
		if got, _ := device["sw_version"].(string); got != "0.1.0" {
			t.Errorf("%s sw_version = %s", doc.Topic, got)
		}
	}
}

// Republishing with unchanged metadata must yield byte-identical
// payloads, so the broker's retained documents never churn.
func TestBuildDiscoveryDocumentsDeterministic(t *testing.T) {
	topics := TopicsFor("enviro_test")

	first := BuildDiscoveryDocuments(topics, "homeassistant", "0.1.0")
	second := BuildDiscoveryDocuments(topics, "homeassistant", "0.1.0")

	if len(first) != len(second) {
		t.Fatalf("document counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Topic != second[i].Topic {
			t.Errorf("topic %d differs: %s vs %s", i, first[i].Topic, second[i].Topic)
		}
		if !bytes.Equal(first[i].Payload, second[i].Payload) {
			t.Errorf("payload for %s not byte-identical:\n%s\n%s",
				first[i].Topic, first[i].Payload, second[i].Payload)
		}
	}
}

func TestDiscoverySensorStateClass(t *testing.T) {
	topics := TopicsFor("enviro_test")
	docs := BuildDiscoveryDocuments(topics, "homeassistant", "0.1.0")

	for _, doc := range docs {
		if !strings.Contains(doc.Topic, "/sensor/") {
			continue
		}

		var cfg map[string]interface{}
		if err := json.Unmarshal(doc.Payload, &cfg); err != nil {
			t.Fatalf("invalid JSON for %s: %v", doc.Topic, err)
		}

		_, hasUnit := cfg["unit_of_measurement"]
		_, hasClass := cfg["state_class"]
		if hasUnit != hasClass {
			t.Errorf("%s: state_class must accompany unit_of_measurement (unit=%v class=%v)",
				doc.Topic, hasUnit, hasClass)
		}
	}
}

// Number entities use the retained set topic for both command and
// state, so the slider reflects the applied value after the agent
// echoes it back.
func TestDiscoveryNumberTopics(t *testing.T) {
	topics := TopicsFor("enviro_test")
	docs := BuildDiscoveryDocuments(topics, "homeassistant", "0.1.0")

	found := 0
	for _, doc := range docs {
		if !strings.Contains(doc.Topic, "/number/") {
			continue
		}
		found++

		var cfg map[string]interface{}
		if err := json.Unmarshal(doc.Payload, &cfg); err != nil {
			t.Fatalf("invalid JSON for %s: %v", doc.Topic, err)
		}

		cmd, _ := cfg["command_topic"].(string)
		state, _ := cfg["state_topic"].(string)
		if cmd == "" || cmd != state {
			t.Errorf("%s: command_topic %q != state_topic %q", doc.Topic, cmd, state)
		}
		if !strings.HasPrefix(cmd, "enviro_test/set/") {
			t.Errorf("%s: command_topic %q not under set/", doc.Topic, cmd)
		}
	}
	if found != len(Numbers) {
		t.Errorf("found %d number documents, want %d", found, len(Numbers))
	}
}

func TestDiscoveryButtonPayloads(t *testing.T) {
	topics := TopicsFor("enviro_test")
	docs := BuildDiscoveryDocuments(topics, "homeassistant", "0.1.0")

	payloads := make(map[string]bool)
	for _, doc := range docs {
		if !strings.Contains(doc.Topic, "/button/") {
			continue
		}

		var cfg map[string]interface{}
		if err := json.Unmarshal(doc.Payload, &cfg); err != nil {
			t.Fatalf("invalid JSON for %s: %v", doc.Topic, err)
		}

		if got, _ := cfg["command_topic"].(string); got != "enviro_test/cmd" {
			t.Errorf("%s command_topic = %s", doc.Topic, got)
		}
		press, _ := cfg["payload_press"].(string)
		payloads[press] = true
	}

	for _, want := range []string{"reboot", "shutdown", "restart_service"} {
		if !payloads[want] {
			t.Errorf("no button with payload_press %q", want)
		}
	}
}

func TestObjectID(t *testing.T) {
	if got := objectID("bme280/temperature"); got != "bme280_temperature" {
		t.Errorf("objectID = %s", got)
	}
	if got := objectID("meta/last_update"); got != "meta_last_update" {
		t.Errorf("objectID = %s", got)
	}
}
