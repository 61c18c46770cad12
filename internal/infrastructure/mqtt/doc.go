// Package mqtt publishes detection results to an MQTT broker and accepts
// remote detect commands.
//
// The client wraps paho.mqtt.golang with auto-reconnect, subscription
// restoration and a retained status topic backed by a Last Will, so
// subscribers can tell a crashed devsel from one that shut down cleanly.
//
// # Topics
//
// All topics live under a configurable prefix (default "devsel"):
//
//	devsel/system/status    retained online/offline status
//	devsel/sweep/result     retained summary of the latest sweep
//	devsel/selection        retained current selection
//	devsel/command/detect   inbound: request a sweep
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	detector.AddObserver(mqtt.NewSweepPublisher(client, client.Topics(), logger))
package mqtt
