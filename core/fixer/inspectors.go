package fixer

import (
	"github.com/FocuswithJustin/legacyfix/core/legacy"
	"github.com/FocuswithJustin/legacyfix/core/nbt"
)

// Entities whose equipment lives in ArmorItems and HandItems.
var equipmentEntities = []string{
	"EntityArmorStand", "EntityBat", "EntityBlaze", "EntityCaveSpider", "EntityChicken",
	"EntityCow", "EntityCreeper", "EntityEnderDragon", "EntityEnderman", "EntityEndermite",
	"EntityEvoker", "EntityGhast", "EntityGiantZombie", "EntityGuardian", "EntityGuardianElder",
	"EntityHorse", "EntityHorseDonkey", "EntityHorseMule", "EntityHorseSkeleton", "EntityHorseZombie",
	"EntityIronGolem", "EntityMagmaCube", "EntityMushroomCow", "EntityOcelot", "EntityPig",
	"EntityPigZombie", "EntityRabbit", "EntitySheep", "EntityShulker", "EntitySilverfish",
	"EntitySkeleton", "EntitySkeletonStray", "EntitySkeletonWither", "EntitySlime", "EntitySnowman",
	"EntitySpider", "EntitySquid", "EntityVex", "EntityVillager", "EntityVindicator",
	"EntityWitch", "EntityWither", "EntityWolf", "EntityZombie", "EntityZombieHusk",
	"EntityZombieVillager",
}

type guardedKeys struct {
	class string
	keys  []string
}

var entityItemLists = []guardedKeys{
	{"EntityHorseDonkey", []string{"SaddleItem", "Items"}},
	{"EntityHorseMule", []string{"Items"}},
	{"EntityMinecartChest", []string{"Items"}},
	{"EntityMinecartHopper", []string{"Items"}},
	{"EntityVillager", []string{"Inventory"}},
}

var entityItemSingles = []guardedKeys{
	{"EntityFireworks", []string{"FireworksItem"}},
	{"EntityHorse", []string{"ArmorItem"}},
	{"EntityHorse", []string{"SaddleItem"}},
	{"EntityHorseMule", []string{"SaddleItem"}},
	{"EntityHorseSkeleton", []string{"SaddleItem"}},
	{"EntityHorseZombie", []string{"SaddleItem"}},
	{"EntityItem", []string{"Item"}},
	{"EntityItemFrame", []string{"Item"}},
	{"EntityPotion", []string{"Potion"}},
}

var blockEntityItemLists = []string{
	"TileEntityBrewingStand", "TileEntityChest", "TileEntityDispenser", "TileEntityDropper",
	"TileEntityFurnace", "TileEntityHopper", "TileEntityShulkerBox",
}

// registerInspectors installs every inspector in its fixed order. Guards are
// resolved here, so a missing class name fails engine construction.
func (e *Engine) registerInspectors() error {
	guard := func(kind Kind, class string, in Inspector) error {
		g, err := Guarded(e.tables, class, in)
		if err != nil {
			return err
		}
		e.registerInspector(kind, g)
		return nil
	}

	for _, l := range entityItemLists {
		if err := guard(Entity, l.class, itemLists(l.keys...)); err != nil {
			return err
		}
	}
	for _, class := range equipmentEntities {
		if err := guard(Entity, class, itemLists("ArmorItems", "HandItems")); err != nil {
			return err
		}
	}
	for _, s := range entityItemSingles {
		if err := guard(Entity, s.class, itemSingle(s.keys[0])); err != nil {
			return err
		}
	}

	if err := guard(BlockEntity, "TileEntityRecordPlayer", itemSingle("RecordItem")); err != nil {
		return err
	}
	for _, class := range blockEntityItemLists {
		if err := guard(BlockEntity, class, itemLists("Items")); err != nil {
			return err
		}
	}
	if err := guard(BlockEntity, "TileEntityMobSpawner", InspectorFunc(inspectSpawnerMobs)); err != nil {
		return err
	}

	e.registerInspector(Chunk, InspectorFunc(inspectChunk))

	if err := guard(Entity, "EntityMinecartCommandBlock", borrowIdentity(BlockEntity, "Control")); err != nil {
		return err
	}
	e.registerInspector(Entity, InspectorFunc(inspectPassengers))
	spawner, err := e.tables.ResolveClassName("TileEntityMobSpawner")
	if err != nil {
		return err
	}
	if err := guard(Entity, "EntityMinecartMobSpawner", borrowIdentity(BlockEntity, spawner)); err != nil {
		return err
	}
	if err := guard(Entity, "EntityVillager", InspectorFunc(inspectVillagerTrades)); err != nil {
		return err
	}

	e.registerInspector(ItemInstance, InspectorFunc(e.inspectItemBlockEntity))
	e.registerInspector(ItemInstance, InspectorFunc(e.inspectItemEntity))

	e.registerInspector(Level, compounds(Player, "Player"))
	e.registerInspector(Player, InspectorFunc(inspectPlayer))
	e.registerInspector(Player, InspectorFunc(inspectPlayerVehicle))
	e.registerInspector(Structure, InspectorFunc(inspectStructure))
	return nil
}

// convertItems migrates every element of the list at key as an item stack.
func convertItems(r Recurser, doc *nbt.Document, key string, source, target int) {
	list, ok := doc.GetList(key)
	if !ok {
		return
	}
	for j := 0; j < list.Len(); j++ {
		list.Set(j, r.Convert(ItemInstance, list.GetDocumentOrEmpty(j), source, target))
	}
}

// convertCompound migrates the compound at key as kind. Absent keys are left
// absent.
func convertCompound(r Recurser, kind Kind, doc *nbt.Document, key string, source, target int) {
	if sub, ok := doc.GetDocument(key); ok {
		doc.PutDocument(key, r.Convert(kind, sub, source, target))
	}
}

func itemLists(keys ...string) Inspector {
	return InspectorFunc(func(r Recurser, doc *nbt.Document, source, target int) *nbt.Document {
		for _, key := range keys {
			convertItems(r, doc, key, source, target)
		}
		return doc
	})
}

func itemSingle(key string) Inspector {
	return compounds(ItemInstance, key)
}

func compounds(kind Kind, keys ...string) Inspector {
	return InspectorFunc(func(r Recurser, doc *nbt.Document, source, target int) *nbt.Document {
		for _, key := range keys {
			convertCompound(r, kind, doc, key, source, target)
		}
		return doc
	})
}

// borrowIdentity migrates a document under another kind's rules by
// temporarily giving it that kind's id. The original id is restored
// afterwards whatever the nested call did.
func borrowIdentity(kind Kind, id string) Inspector {
	return InspectorFunc(func(r Recurser, doc *nbt.Document, source, target int) *nbt.Document {
		original, had := doc.Get("id")
		doc.PutString("id", id)
		defer func() {
			if had {
				doc.Put("id", original)
			} else {
				doc.Remove("id")
			}
		}()
		r.Convert(kind, doc, source, target)
		return doc
	})
}

func inspectSpawnerMobs(r Recurser, doc *nbt.Document, source, target int) *nbt.Document {
	if potentials, ok := doc.GetList("SpawnPotentials"); ok {
		for j := 0; j < potentials.Len(); j++ {
			if potential, ok := potentials.GetDocument(j); ok {
				convertCompound(r, Entity, potential, "Entity", source, target)
			}
		}
	}
	convertCompound(r, Entity, doc, "SpawnData", source, target)
	return doc
}

func inspectChunk(r Recurser, doc *nbt.Document, source, target int) *nbt.Document {
	level, ok := doc.GetDocument("Level")
	if !ok {
		return doc
	}
	convertList(r, Entity, level, "Entities", source, target)
	convertList(r, BlockEntity, level, "TileEntities", source, target)
	return doc
}

func convertList(r Recurser, kind Kind, doc *nbt.Document, key string, source, target int) {
	list, ok := doc.GetList(key)
	if !ok {
		return
	}
	for j := 0; j < list.Len(); j++ {
		if sub, ok := list.GetDocument(j); ok {
			list.Set(j, r.Convert(kind, sub, source, target))
		}
	}
}

func inspectPassengers(r Recurser, doc *nbt.Document, source, target int) *nbt.Document {
	convertList(r, Entity, doc, "Passengers", source, target)
	return doc
}

func inspectVillagerTrades(r Recurser, doc *nbt.Document, source, target int) *nbt.Document {
	offers, ok := doc.GetDocument("Offers")
	if !ok {
		return doc
	}
	recipes, ok := offers.GetList("Recipes")
	if !ok {
		return doc
	}
	for j := 0; j < recipes.Len(); j++ {
		recipe, ok := recipes.GetDocument(j)
		if !ok {
			continue
		}
		for _, key := range []string{"buy", "buyB", "sell"} {
			convertCompound(r, ItemInstance, recipe, key, source, target)
		}
	}
	return doc
}

// inspectItemBlockEntity migrates the block entity embedded in an item's
// tag. The id it needs is derived from the item; it is removed again when
// the tag did not carry one.
func (e *Engine) inspectItemBlockEntity(r Recurser, doc *nbt.Document, source, target int) *nbt.Document {
	tag, ok := doc.GetDocument("tag")
	if !ok {
		return doc
	}
	blockEntity, ok := tag.GetDocument("BlockEntityTag")
	if !ok {
		return doc
	}
	itemID := doc.GetStringOr("id", "")
	added := false
	if id, ok := e.tables.BlockEntityForItem(itemID, source); ok {
		added = !blockEntity.Has("id")
		blockEntity.PutString("id", id)
	} else {
		e.logger.Debug("no block entity for item", "item", itemID)
	}
	r.Convert(BlockEntity, blockEntity, source, target)
	if added {
		blockEntity.Remove("id")
	}
	return doc
}

// inspectItemEntity migrates the entity embedded in armor stand and spawn
// egg items.
func (e *Engine) inspectItemEntity(r Recurser, doc *nbt.Document, source, target int) *nbt.Document {
	tag, ok := doc.GetDocument("tag")
	if !ok {
		return doc
	}
	entity, ok := tag.GetDocument("EntityTag")
	if !ok {
		return doc
	}

	itemID := doc.GetStringOr("id", "")
	var entityID string
	var resolved bool
	switch legacy.Namespaced(itemID) {
	case "minecraft:armor_stand":
		entityID, resolved = "minecraft:armor_stand", true
		if source < 515 {
			entityID = "ArmorStand"
		}
	case "minecraft:spawn_egg":
		entityID, resolved = entity.GetString("id")
	default:
		return doc
	}

	added := false
	if resolved {
		added = !entity.HasType("id", nbt.TagString)
		entity.PutString("id", entityID)
	} else {
		e.logger.Warn("unable to resolve entity for item", "item", itemID)
	}
	r.Convert(Entity, entity, source, target)
	if added {
		entity.Remove("id")
	}
	return doc
}

func inspectPlayer(r Recurser, doc *nbt.Document, source, target int) *nbt.Document {
	convertItems(r, doc, "Inventory", source, target)
	convertItems(r, doc, "EnderItems", source, target)
	convertCompound(r, Entity, doc, "ShoulderEntityLeft", source, target)
	convertCompound(r, Entity, doc, "ShoulderEntityRight", source, target)
	return doc
}

func inspectPlayerVehicle(r Recurser, doc *nbt.Document, source, target int) *nbt.Document {
	if vehicle, ok := doc.GetDocument("RootVehicle"); ok {
		convertCompound(r, Entity, vehicle, "Entity", source, target)
	}
	return doc
}

func inspectStructure(r Recurser, doc *nbt.Document, source, target int) *nbt.Document {
	for _, part := range []struct {
		key  string
		kind Kind
	}{{"entities", Entity}, {"blocks", BlockEntity}} {
		list, ok := doc.GetList(part.key)
		if !ok {
			continue
		}
		for j := 0; j < list.Len(); j++ {
			if entry, ok := list.GetDocument(j); ok {
				convertCompound(r, part.kind, entry, "nbt", source, target)
			}
		}
	}
	return doc
}
