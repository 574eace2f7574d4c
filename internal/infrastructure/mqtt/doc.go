// Package mqtt provides MQTT client connectivity for BioStream Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// BioStream uses MQTT as an outbound fan-out bus: recorded samples and
// journal lines are republished for dashboards and downstream consumers,
// and a command topic allows remote recording control.
//
//	BioStream Core → MQTT Broker → Dashboards / Consumers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Publish a sample
//	topic := mqtt.Topics{}.Data("polar-123", "HR")
//	client.Publish(topic, []byte(`{"bpm":72}`), 1, false)
//
//	// Listen for remote recording commands
//	err = client.Subscribe(mqtt.Topics{}.RecordingCommand(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
