// Package mqtt is the importer's event bus client.
//
// Every processed exchange file produces an import event on
// edielcore/import/{completed,failed}, stored readings are announced
// per metering point, and a single inbound control topic
// (edielcore/control/scan) triggers an inbox scan ahead of the regular
// poll. Online/offline presence is kept on a retained system status
// topic, backed by a Last Will for crash detection.
//
// The client auto-reconnects with backoff and replays its
// subscriptions on every reconnect. TLS and broker credentials come
// from the mqtt section of config.yaml; anonymous plaintext is for
// local development only.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.ControlScan(), 1,
//	    func(topic string, payload []byte) error {
//	        svc.TriggerScan()
//	        return nil
//	    })
package mqtt
