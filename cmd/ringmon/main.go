package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/tokenring/pkg/telemetry/mqtt"
	"github.com/robotalks/tokenring/pkg/telemetry/pb"
)

var (
	mqttURL = mqtt.DefaultBrokerURL
)

func init() {
	if val := os.Getenv("RING_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	token := q.Connect()
	if token.Wait(); token.Error() != nil {
		log.Fatalln(token.Error())
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, mqtt.MetaTopicSuffix) {
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		if mqtt.NodeFromTopic(topic) == "" {
			return
		}
		ev, err := pb.Decode(payload)
		if err != nil {
			log.Printf("%s: bad event: %v", topic, err)
			return
		}
		log.Println(ev.String())
	}))
	<-(chan struct{})(nil)
}
