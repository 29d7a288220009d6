package fixer

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/legacyfix/core/nbt"
)

// Legacy entity ids as they were saved before the namespaced rename.
var healthEntities = map[string]bool{
	"ArmorStand": true, "Bat": true, "Blaze": true, "CaveSpider": true, "Chicken": true,
	"Cow": true, "Creeper": true, "EnderDragon": true, "Enderman": true, "Endermite": true,
	"EntityHorse": true, "Ghast": true, "Giant": true, "Guardian": true, "LavaSlime": true,
	"MushroomCow": true, "Ozelot": true, "Pig": true, "PigZombie": true, "Rabbit": true,
	"Sheep": true, "Shulker": true, "Silverfish": true, "Skeleton": true, "Slime": true,
	"SnowMan": true, "Spider": true, "Squid": true, "Villager": true, "VillagerGolem": true,
	"Witch": true, "WitherBoss": true, "Wolf": true, "Zombie": true,
}

var minecartTypes = []string{
	"MinecartRideable", "MinecartChest", "MinecartFurnace", "MinecartTNT",
	"MinecartSpawner", "MinecartHopper", "MinecartCommandBlock",
}

// facing2D lists the horizontal directions by their 2D data value with the
// block step each one implies.
var facing2D = [4]struct{ dx, dz int32 }{
	{0, 1},  // south
	{-1, 0}, // west
	{0, -1}, // north
	{1, 0},  // east
}

func (e *Engine) entityConverters() []Converter {
	return []Converter{
		NewConverter(100, convertEquipment),
		NewConverter(106, convertMinecart),
		NewConverter(108, e.convertUUID),
		NewConverter(109, convertHealth),
		NewConverter(110, convertSaddle),
		NewConverter(111, convertHanging),
		NewConverter(113, convertDropChances),
		NewConverter(135, convertRiding),
		NewConverter(147, convertArmorStandSilent),
		NewConverter(502, e.convertZombieProfession),
		NewConverter(700, convertGuardian),
		NewConverter(701, convertSkeleton),
		NewConverter(702, convertZombieType),
		NewConverter(703, convertHorse),
		NewConverter(704, e.convertEntityID),
		NewConverter(808, convertShulkerColor),
	}
}

// convertEquipment splits the single Equipment list into hand and armor
// slots, and DropChances the same way.
func convertEquipment(doc *nbt.Document) *nbt.Document {
	equipment := doc.GetListOrEmpty("Equipment")
	if equipment.Len() > 0 && !doc.Has("HandItems") {
		doc.PutList("HandItems", nbt.NewList(equipment.GetDocumentOrEmpty(0), nbt.New()))
	}
	if equipment.Len() > 1 && !doc.Has("ArmorItems") {
		armor := nbt.NewList()
		for i := 1; i <= 4; i++ {
			armor.Append(equipment.GetDocumentOrEmpty(i))
		}
		doc.PutList("ArmorItems", armor)
	}
	doc.Remove("Equipment")

	if chances, ok := doc.GetList("DropChances"); ok {
		if !doc.Has("HandDropChances") {
			doc.PutList("HandDropChances", nbt.NewList(nbt.Float(chances.GetFloat(0)), nbt.Float(0)))
		}
		if !doc.Has("ArmorDropChances") {
			doc.PutList("ArmorDropChances", nbt.NewList(
				nbt.Float(chances.GetFloat(1)),
				nbt.Float(chances.GetFloat(2)),
				nbt.Float(chances.GetFloat(3)),
				nbt.Float(chances.GetFloat(4)),
			))
		}
		doc.Remove("DropChances")
	}
	return doc
}

func convertMinecart(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") != "Minecart" {
		return doc
	}
	id := minecartTypes[0]
	if t := int(doc.GetIntOr("Type", 0)); t > 0 && t < len(minecartTypes) {
		id = minecartTypes[t]
	}
	doc.PutString("id", id)
	doc.Remove("Type")
	return doc
}

// convertUUID replaces a textual UUID with four big-endian ints.
func (e *Engine) convertUUID(doc *nbt.Document) *nbt.Document {
	s, ok := doc.GetString("UUID")
	if !ok {
		return doc
	}
	u, err := uuid.Parse(s)
	if err != nil {
		e.logger.Warn("entity UUID left unchanged", "uuid", s, "error", err)
		return doc
	}
	ints := make([]int32, 4)
	for i := range ints {
		ints[i] = int32(binary.BigEndian.Uint32(u[i*4:]))
	}
	doc.PutIntArray("UUID", ints)
	return doc
}

func convertHealth(doc *nbt.Document) *nbt.Document {
	if !healthEntities[doc.GetStringOr("id", "")] {
		return doc
	}
	var health float32
	if f, ok := doc.GetFloat("HealF"); ok {
		health = f
		doc.Remove("HealF")
	} else if f, ok := doc.GetFloat("Health"); ok {
		health = f
	} else {
		return doc
	}
	doc.PutFloat("Health", health)
	return doc
}

func convertSaddle(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") != "EntityHorse" || doc.HasType("SaddleItem", nbt.TagCompound) || !doc.GetBool("Saddle") {
		return doc
	}
	saddle := nbt.New()
	saddle.PutString("id", "minecraft:saddle")
	saddle.PutByte("Count", 1)
	saddle.PutShort("Damage", 0)
	doc.PutDocument("SaddleItem", saddle)
	doc.Remove("Saddle")
	return doc
}

// convertHanging moves paintings and item frames from the block they hang
// on to the block they occupy and records their facing.
func convertHanging(doc *nbt.Document) *nbt.Document {
	id := doc.GetStringOr("id", "")
	painting, frame := id == "Painting", id == "ItemFrame"
	if (!painting && !frame) || doc.HasNumber("Facing") {
		return doc
	}

	var facing int8
	if d, ok := doc.GetByte("Direction"); ok {
		facing = from2D(d)
		step := facing2D[facing]
		doc.PutInt("TileX", doc.GetIntOr("TileX", 0)+step.dx)
		doc.PutInt("TileY", doc.GetIntOr("TileY", 0))
		doc.PutInt("TileZ", doc.GetIntOr("TileZ", 0)+step.dz)
		doc.Remove("Direction")
		if r, ok := doc.GetByte("ItemRotation"); frame && ok {
			doc.PutByte("ItemRotation", r*2)
		}
	} else if d, ok := doc.GetByte("Dir"); ok {
		facing = from2D(d)
		doc.Remove("Dir")
	} else {
		return doc
	}
	doc.PutByte("Facing", facing)
	return doc
}

func from2D(d int8) int8 {
	v := d % 4
	if v < 0 {
		v = -v
	}
	return v
}

func convertDropChances(doc *nbt.Document) *nbt.Document {
	if l, ok := doc.GetList("HandDropChances"); ok && l.Len() == 2 && allZero(l) {
		doc.Remove("HandDropChances")
	}
	if l, ok := doc.GetList("ArmorDropChances"); ok && l.Len() == 4 && allZero(l) {
		doc.Remove("ArmorDropChances")
	}
	return doc
}

func allZero(l *nbt.List) bool {
	for i := 0; i < l.Len(); i++ {
		if l.GetFloat(i) != 0 {
			return false
		}
	}
	return true
}

// convertRiding inverts the Riding chain: the rider becomes a passenger of
// its mount, and the bottom-most mount becomes the root.
func convertRiding(doc *nbt.Document) *nbt.Document {
	for {
		vehicle, ok := doc.GetDocument("Riding")
		if !ok {
			return doc
		}
		doc.Remove("Riding")
		vehicle.PutList("Passengers", nbt.NewList(doc))
		doc = vehicle
	}
}

func convertArmorStandSilent(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") == "ArmorStand" && doc.GetBool("Silent") && !doc.GetBool("Marker") {
		doc.Remove("Silent")
	}
	return doc
}

// convertZombieProfession gives villager zombies a ZombieType, taken from
// their profession when valid and chosen at random otherwise.
func (e *Engine) convertZombieProfession(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") != "Zombie" || !doc.GetBool("IsVillager") {
		return doc
	}
	if !doc.HasNumber("ZombieType") {
		t := int32(-1)
		if p, ok := doc.GetInt("VillagerProfession"); ok && p >= 0 && p < 6 {
			t = p
		}
		if t == -1 {
			t = int32(e.rand(6))
		}
		doc.PutInt("ZombieType", t)
	}
	doc.Remove("IsVillager")
	return doc
}

func convertGuardian(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") != "Guardian" {
		return doc
	}
	if doc.GetBool("Elder") {
		doc.PutString("id", "ElderGuardian")
	}
	doc.Remove("Elder")
	return doc
}

func convertSkeleton(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") != "Skeleton" {
		return doc
	}
	switch doc.GetIntOr("SkeletonType", 0) {
	case 1:
		doc.PutString("id", "WitherSkeleton")
	case 2:
		doc.PutString("id", "Stray")
	}
	doc.Remove("SkeletonType")
	return doc
}

func convertZombieType(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") != "Zombie" {
		return doc
	}
	switch t := doc.GetIntOr("ZombieType", 0); {
	case t >= 1 && t <= 5:
		doc.PutString("id", "ZombieVillager")
		doc.PutInt("Profession", t-1)
	case t == 6:
		doc.PutString("id", "Husk")
	}
	doc.Remove("ZombieType")
	return doc
}

func convertHorse(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") != "EntityHorse" {
		return doc
	}
	id := "Horse"
	switch doc.GetIntOr("Type", 0) {
	case 1:
		id = "Donkey"
	case 2:
		id = "Mule"
	case 3:
		id = "ZombieHorse"
	case 4:
		id = "SkeletonHorse"
	}
	doc.PutString("id", id)
	doc.Remove("Type")
	return doc
}

// convertEntityID renames legacy entity ids to namespaced ones.
func (e *Engine) convertEntityID(doc *nbt.Document) *nbt.Document {
	if id, ok := doc.GetString("id"); ok {
		if renamed, ok := e.tables.Entities.Lookup(id); ok {
			doc.PutString("id", renamed)
		}
	}
	return doc
}

func convertShulkerColor(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") == "minecraft:shulker" && !doc.HasNumber("Color") {
		doc.PutByte("Color", 10)
	}
	return doc
}
