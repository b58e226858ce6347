package tour

// Default returns the built-in two-marker tour: three composite scenes and a guide on
// the first marker, then three building scenes on the second marker once all three
// scenes have been viewed.
func Default() *Tour {
	first, boundary := 0, 2
	return &Tour{
		Name: "campus",
		Targets: []TargetDef{
			{
				Name:     "plaque",
				Track:    []int{0, 1, 2},
				Boundary: &boundary,
				Unlocked: "All scenes complete! Guide unlocked.",
				Stalled:  "Finish this scene to unlock the guide.",
				Occluders: []string{
					"DataModel/GhostBina1.gltf",
					"DataModel/GhostBina2.gltf",
					"DataModel/GhostBina3.gltf",
					"DataModel/Ghostgunes.gltf",
				},
				Slots: []SlotDef{
					{
						Files: []string{
							"Sahne1.1/gunes.gltf",
							"Sahne1.1/Soru1.1.gltf",
							"Sahne1.1/Bina.gltf",
							"Sahne1.3/BarV2-1.gltf",
							"Sahne1.2/Pencere1.gltf",
						},
						Timing:    []int{0, 2000, 5000, 8000, 11000},
						HideAfter: []int{0, 3000, 0, 0, 0},
					},
					{
						Files: []string{
							"Sahne2.1/mevcut.gltf",
							"Sahne2.1/gunes.gltf",
							"Sahne2.1/kapanacak/BinaGrup1.gltf",
							"Sahne2.2/acilacakbina/BinaGrup1.gltf",
						},
						Timing:    []int{0, 1500, 4000, 7000},
						HideAfter: []int{0, 0, 3000, 0},
					},
					{
						Files: []string{
							"Sahne3.1/mevcut.gltf",
							"Sahne3.2/Pencere1.gltf",
							"Sahne3.3/Simsek1.gltf",
						},
						Timing:    []int{0, 3000, 6000},
						HideAfter: []int{0, 0, 0},
					},
					{
						Title:  "Guide: Find the Building",
						Static: "Sahne4/binacizgi.png",
						Gated:  true,
					},
				},
			},
			{
				Name:     "building",
				Label:    "Building %d/%d",
				Gate:     &first,
				InitOn:   InitOnSlot,
				InitSlot: 3,
				NotReady: "Complete all 3 scenes first!",
				Slots: []SlotDef{
					{Files: []string{"DataModel/kup.gltf"}, Timing: []int{0}, HideAfter: []int{0}},
					{Files: []string{"BuildingScenes/Scene2/part1.gltf"}, Timing: []int{0}, HideAfter: []int{0}},
					{Files: []string{"BuildingScenes/Scene3/part1.gltf"}, Timing: []int{0}, HideAfter: []int{0}},
				},
			},
		},
	}
}
